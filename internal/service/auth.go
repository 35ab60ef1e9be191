package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/cache"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/utils"
)

const (
	otpTTL         = 10 * time.Minute
	otpMaxAttempts = 3
)

var errInvalidCredentials = apperr.NewUnauthorized("invalid credentials")

// AuthService implements registration, email verification and the
// login/refresh/logout endpoints on top of TokenService.
type AuthService struct {
	users           UserStore
	otps            OTPStore
	tokens          *TokenService
	cache           *cache.Layer
	mailer          Mailer
	bcryptCost      int
	requireVerified bool
	log             *zap.Logger
	now             func() time.Time
}

func NewAuthService(users UserStore, otps OTPStore, tokens *TokenService, c *cache.Layer, mailer Mailer,
	bcryptCost int, requireVerified bool, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users: users, otps: otps, tokens: tokens, cache: c, mailer: mailer,
		bcryptCost: bcryptCost, requireVerified: requireVerified,
		log: log.Named("auth"), now: time.Now,
	}
}

// Register creates an unverified account and mails a verification code.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (model.Profile, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || !strings.Contains(email, "@") {
		return model.Profile{}, apperr.NewBadRequest("name and a valid email are required")
	}
	if err := validatePassword(password); err != nil {
		return model.Profile{}, err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.Profile{}, apperr.NewInternal("hash password", err)
	}
	u := model.User{Name: name, Email: email, PasswordHash: hash, Status: model.UserActive}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.Profile{}, storeErr(err, "email already registered")
	}
	if err := s.sendOTP(ctx, email); err != nil {
		return model.Profile{}, err
	}
	return u.Profile(), nil
}

// ResendOTP replaces the pending code of an unverified account.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return storeErr(err, "user not found")
	}
	if u.Verified {
		return apperr.NewBadRequest("email already verified")
	}
	return s.sendOTP(ctx, u.Email)
}

// VerifyEmail checks code and, on success, verifies the account and logs
// the user in.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (model.Profile, TokenPair, error) {
	email = normalizeEmail(email)
	o, err := s.otps.Get(ctx, email)
	if err != nil {
		if apperr.KindOf(storeErr(err, "")) == apperr.KindNotFound {
			return model.Profile{}, TokenPair{}, apperr.NewBadRequest("no pending verification for this email")
		}
		return model.Profile{}, TokenPair{}, storeErr(err, "")
	}
	if !s.now().Before(o.ExpiresAt) {
		_ = s.otps.Delete(ctx, email)
		return model.Profile{}, TokenPair{}, apperr.NewBadRequest("verification code expired")
	}
	if o.Attempts >= otpMaxAttempts {
		_ = s.otps.Delete(ctx, email)
		return model.Profile{}, TokenPair{}, apperr.NewBadRequest("too many attempts, request a new code")
	}
	if !utils.HashesEqual(o.CodeHash, utils.HashToken(strings.TrimSpace(code))) {
		if err := s.otps.IncrementAttempts(ctx, email); err != nil {
			s.log.Warn("record otp attempt", zap.Error(err))
		}
		return model.Profile{}, TokenPair{}, apperr.NewBadRequest("invalid verification code")
	}
	if err := s.users.MarkVerified(ctx, email); err != nil {
		return model.Profile{}, TokenPair{}, storeErr(err, "user not found")
	}
	if err := s.otps.Delete(ctx, email); err != nil {
		s.log.Warn("delete used otp", zap.Error(err))
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return model.Profile{}, TokenPair{}, storeErr(err, "user not found")
	}
	s.cache.Invalidate(ctx, cache.ProfileChanged(u.ID))
	pair, err := s.tokens.IssuePair(ctx, u.ID, u.Email)
	if err != nil {
		return model.Profile{}, TokenPair{}, err
	}
	return u.Profile(), pair, nil
}

// Login checks credentials and issues a pair.  Every failure reads the
// same to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.Profile, TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.KindOf(storeErr(err, "")) == apperr.KindNotFound {
			return model.Profile{}, TokenPair{}, errInvalidCredentials
		}
		return model.Profile{}, TokenPair{}, storeErr(err, "")
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || u.Status != model.UserActive {
		return model.Profile{}, TokenPair{}, errInvalidCredentials
	}
	if s.requireVerified && !u.Verified {
		return model.Profile{}, TokenPair{}, errInvalidCredentials
	}
	pair, err := s.tokens.IssuePair(ctx, u.ID, u.Email)
	if err != nil {
		return model.Profile{}, TokenPair{}, err
	}
	return u.Profile(), pair, nil
}

// Refresh rotates an explicit refresh token.  The owner must still be
// active.
func (s *AuthService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	if strings.TrimSpace(raw) == "" {
		return TokenPair{}, apperr.NewBadRequest("refresh token required")
	}
	pair, claims, err := s.tokens.Rotate(ctx, raw)
	if err != nil {
		return TokenPair{}, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil || u.Status != model.UserActive {
		return TokenPair{}, apperr.NewUnauthorized(string(Reauthenticate))
	}
	return pair, nil
}

// Logout revokes the refresh token when it is still current.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, raw)
}

func (s *AuthService) sendOTP(ctx context.Context, email string) error {
	code, err := utils.NewOTP()
	if err != nil {
		return apperr.NewInternal("generate otp", err)
	}
	o := model.OTP{Email: email, CodeHash: utils.HashToken(code), ExpiresAt: s.now().Add(otpTTL)}
	if err := s.otps.Upsert(ctx, o); err != nil {
		return storeErr(err, "")
	}
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.\n", code, int(otpTTL/time.Minute))
	if err := s.mailer.Send(ctx, email, "Verify your email", body); err != nil {
		return apperr.NewInternal("send verification email", err)
	}
	return nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
