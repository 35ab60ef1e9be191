package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/cache"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/utils"
)

// MemberService manages project membership and invitations.
type MemberService struct {
	projects ProjectStore
	members  MemberStore
	users    UserStore
	cache    *cache.Layer
	events   Emitter
	mailer   Mailer
	invite   InviteConfig
	log      *zap.Logger
}

// InviteConfig signs invitation links.
type InviteConfig struct {
	Secret     string
	TTL        time.Duration
	BaseURL    string
	BcryptCost int
}

func NewMemberService(projects ProjectStore, members MemberStore, users UserStore, c *cache.Layer,
	bus Emitter, mailer Mailer, invite InviteConfig, log *zap.Logger) *MemberService {
	if log == nil {
		log = zap.NewNop()
	}
	if invite.TTL <= 0 {
		invite.TTL = 72 * time.Hour
	}
	return &MemberService{
		projects: projects, members: members, users: users, cache: c,
		events: bus, mailer: mailer, invite: invite, log: log.Named("members"),
	}
}

// Add makes an existing user a member of projectID with role.
func (s *MemberService) Add(ctx context.Context, actor, projectID, userID string, role model.Role) (model.Membership, error) {
	if _, ok := model.ParseRole(string(role)); !ok {
		return model.Membership{}, apperr.NewBadRequest("unknown role")
	}
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return model.Membership{}, storeErr(err, "project not found")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return model.Membership{}, storeErr(err, "user not found")
	}
	m := model.Membership{UserID: userID, ProjectID: projectID, Role: role}
	if err := s.members.Add(ctx, &m); err != nil {
		return model.Membership{}, storeErr(err, "user is already a member")
	}
	s.cache.Invalidate(ctx, cache.MembershipChanged(projectID, userID))
	emit(s.events, projectID, actor, model.ActionMemberAdded, fmt.Sprintf("user %s added as %s", userID, role))
	return m, nil
}

// List returns a page of members.
func (s *MemberService) List(ctx context.Context, projectID string, pg model.Pagination) (model.Page[model.MemberView], error) {
	return cache.GetOrLoad(ctx, s.cache, cache.ProjectMembers(projectID, pg), func(ctx context.Context) (model.Page[model.MemberView], error) {
		rows, total, err := s.members.List(ctx, projectID, pg)
		if err != nil {
			return model.Page[model.MemberView]{}, storeErr(err, "")
		}
		return model.NewPage(rows, total, pg.Page, pg.Limit), nil
	})
}

// ChangeRole sets the role of an existing member.  The owner stays ADMIN.
func (s *MemberService) ChangeRole(ctx context.Context, actor, projectID, userID string, role model.Role) (model.Membership, error) {
	if _, ok := model.ParseRole(string(role)); !ok {
		return model.Membership{}, apperr.NewBadRequest("unknown role")
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return model.Membership{}, storeErr(err, "project not found")
	}
	if userID == p.OwnerID && role != model.RoleAdmin {
		return model.Membership{}, apperr.NewForbidden("the project owner must remain ADMIN")
	}
	current, err := s.members.Get(ctx, projectID, userID)
	if err != nil {
		return model.Membership{}, storeErr(err, "membership not found")
	}
	if err := s.members.UpdateRole(ctx, projectID, userID, role); err != nil {
		return model.Membership{}, storeErr(err, "membership not found")
	}
	s.cache.Invalidate(ctx, cache.MembershipChanged(projectID, userID))
	emit(s.events, projectID, actor, model.ActionMemberRoleChanged,
		fmt.Sprintf("role of user %s changed from %s to %s", userID, current.Role, role))
	current.Role = role
	return current, nil
}

// Remove deletes a membership.  The owner's membership cannot be removed
// by anyone.
func (s *MemberService) Remove(ctx context.Context, actor, projectID, userID string) error {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return storeErr(err, "project not found")
	}
	if userID == p.OwnerID {
		return apperr.NewForbidden("the project owner cannot be removed")
	}
	if err := s.members.Remove(ctx, projectID, userID); err != nil {
		return storeErr(err, "membership not found")
	}
	s.cache.Invalidate(ctx, cache.MembershipChanged(projectID, userID))
	emit(s.events, projectID, actor, model.ActionMemberRemoved, fmt.Sprintf("user %s removed", userID))
	return nil
}

// Invitation describes a sent invitation.  The token itself only travels
// by mail.
type Invitation struct {
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	UserCreated bool       `json:"userCreated"`
}

// Invite mails a signed invitation to email.  Unknown addresses get an
// account with a temporary password so the link can be accepted after
// logging in.
func (s *MemberService) Invite(ctx context.Context, actor, projectID, email string, role model.Role) (Invitation, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return Invitation{}, apperr.NewBadRequest("a valid email is required")
	}
	if _, ok := model.ParseRole(string(role)); !ok {
		return Invitation{}, apperr.NewBadRequest("unknown role")
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return Invitation{}, storeErr(err, "project not found")
	}

	var tempPassword string
	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if _, err := s.members.Get(ctx, projectID, u.ID); err == nil {
			return Invitation{}, apperr.NewConflict("user is already a member")
		} else if apperr.KindOf(storeErr(err, "")) != apperr.KindNotFound {
			return Invitation{}, storeErr(err, "")
		}
	case apperr.KindOf(storeErr(err, "")) == apperr.KindNotFound:
		if u, tempPassword, err = s.createInvitee(ctx, email); err != nil {
			return Invitation{}, err
		}
	default:
		return Invitation{}, storeErr(err, "")
	}

	tok, err := utils.SignInvite(s.invite.Secret, projectID, email, string(role), s.invite.TTL)
	if err != nil {
		return Invitation{}, apperr.NewInternal("sign invitation", err)
	}
	link := strings.TrimRight(s.invite.BaseURL, "/") + "/v1/projects/invitations/accept?token=" + url.QueryEscape(tok.Token)
	body := fmt.Sprintf("You have been invited to join %q as %s.\n\nAccept the invitation: %s\n", p.Name, role, link)
	if tempPassword != "" {
		body += fmt.Sprintf("\nAn account was created for you. Temporary password: %s\n", tempPassword)
	}
	if err := s.mailer.Send(ctx, email, "Invitation to "+p.Name, body); err != nil {
		return Invitation{}, apperr.NewInternal("send invitation", err)
	}
	emit(s.events, projectID, actor, model.ActionInvitationSent, fmt.Sprintf("invited %s as %s", email, role))
	return Invitation{Email: email, Role: role, ExpiresAt: tok.Exp, UserCreated: tempPassword != ""}, nil
}

// Accept turns an invitation into a membership for actor, whose email
// must match the invited address.
func (s *MemberService) Accept(ctx context.Context, actor Identity, token string) (model.Membership, error) {
	claims, err := utils.ParseInvite(s.invite.Secret, token)
	if err != nil {
		return model.Membership{}, apperr.Wrap(err, apperr.KindBadRequest, "invalid or expired invitation")
	}
	if !strings.EqualFold(claims.Email, actor.Email) {
		return model.Membership{}, apperr.NewForbidden("invitation was issued to another email")
	}
	role, ok := model.ParseRole(claims.Role)
	if !ok {
		return model.Membership{}, apperr.NewBadRequest("invalid or expired invitation")
	}
	if _, err := s.projects.GetByID(ctx, claims.ProjectID); err != nil {
		return model.Membership{}, storeErr(err, "project not found")
	}
	m := model.Membership{UserID: actor.UserID, ProjectID: claims.ProjectID, Role: role}
	if err := s.members.Add(ctx, &m); err != nil {
		return model.Membership{}, storeErr(err, "user is already a member")
	}
	s.cache.Invalidate(ctx, cache.MembershipChanged(claims.ProjectID, actor.UserID))
	emit(s.events, claims.ProjectID, actor.UserID, model.ActionInvitationAccepted,
		fmt.Sprintf("%s joined as %s", actor.Email, role))
	return m, nil
}

func (s *MemberService) createInvitee(ctx context.Context, email string) (model.User, string, error) {
	temp, err := utils.RandomHex(8)
	if err != nil {
		return model.User{}, "", apperr.NewInternal("generate password", err)
	}
	hash, err := utils.HashPassword(temp, s.invite.BcryptCost)
	if err != nil {
		return model.User{}, "", apperr.NewInternal("hash password", err)
	}
	u := model.User{
		Name:         strings.SplitN(email, "@", 2)[0],
		Email:        email,
		PasswordHash: hash,
		Verified:     true,
		Status:       model.UserActive,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, "", storeErr(err, "email already registered")
	}
	s.log.Info("created account for invitee", zap.String("user_id", u.ID))
	return u, temp, nil
}
