package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/cache"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/utils"
)

// UserService serves the caller's own profile.
type UserService struct {
	users      UserStore
	members    MemberStore
	tokens     *TokenService
	cache      *cache.Layer
	bcryptCost int
	log        *zap.Logger
}

func NewUserService(users UserStore, members MemberStore, tokens *TokenService, c *cache.Layer, bcryptCost int, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		users: users, members: members, tokens: tokens, cache: c,
		bcryptCost: bcryptCost, log: log.Named("users"),
	}
}

// Profile returns the public view of a user.
func (s *UserService) Profile(ctx context.Context, id string) (model.Profile, error) {
	p, err := cache.GetOrLoad(ctx, s.cache, cache.UserProfile(id), func(ctx context.Context) (model.Profile, error) {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return model.Profile{}, err
		}
		return u.Profile(), nil
	})
	return p, storeErr(err, "user not found")
}

// UpdateName renames the user.  Member listings embed the name, so every
// project the user belongs to loses its member listing too.
func (s *UserService) UpdateName(ctx context.Context, id, name string) (model.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Profile{}, apperr.NewBadRequest("name is required")
	}
	if err := s.users.UpdateName(ctx, id, name); err != nil {
		return model.Profile{}, storeErr(err, "user not found")
	}
	inv := cache.ProfileChanged(id)
	projectIDs, err := s.members.ProjectIDs(ctx, id)
	if err != nil {
		s.log.Warn("list projects for invalidation", zap.String("user_id", id), zap.Error(err))
	}
	for _, pid := range projectIDs {
		inv = inv.Scopes(cache.ProjectMembersScope(pid))
	}
	s.cache.Invalidate(ctx, inv)
	return s.Profile(ctx, id)
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "user not found")
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return apperr.NewBadRequest("current password is incorrect")
	}
	hash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return apperr.NewInternal("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return storeErr(err, "user not found")
	}
	s.cache.Invalidate(ctx, cache.ProfileChanged(id))
	return nil
}

// Deactivate closes the caller's account after checking the password.
// The row and its memberships stay; the status turns INACTIVE, the
// refresh slot is emptied and the AuthGate refuses the account's tokens
// from the next request on.
func (s *UserService) Deactivate(ctx context.Context, id, password string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "user not found")
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return apperr.NewBadRequest("password is incorrect")
	}
	if err := s.users.SetStatus(ctx, id, model.UserInactive); err != nil {
		return storeErr(err, "user not found")
	}
	if err := s.tokens.RevokeAll(ctx, id); err != nil {
		s.log.Warn("clear refresh slot on deactivate", zap.String("user_id", id), zap.Error(err))
	}
	s.cache.Invalidate(ctx, cache.ProfileChanged(id))
	s.log.Info("account deactivated", zap.String("user_id", id))
	return nil
}

func validatePassword(p string) error {
	if len(p) < 8 {
		return apperr.NewBadRequest("password must be at least 8 characters")
	}
	return nil
}
