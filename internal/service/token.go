package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/metrics"
	"github.com/iliyamo/taskflow/internal/utils"
)

// ErrAccessDenied is returned by Rotate for any refresh token that is not
// the user's current one.
var ErrAccessDenied = apperr.NewUnauthorized("access denied")

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	Access  utils.SignedToken
	Refresh utils.SignedToken
}

// TokenService issues, verifies and rotates tokens.  Access and refresh
// tokens are signed with different secrets and only a SHA-256 hash of the
// current refresh token is persisted.
type TokenService struct {
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	store         RefreshStore
	log           *zap.Logger
	metrics       *metrics.Registry
}

// TokenConfig carries the secrets and lifetimes of a TokenService.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewTokenService(cfg TokenConfig, store RefreshStore, log *zap.Logger, m *metrics.Registry) *TokenService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		store:         store,
		log:           log.Named("tokens"),
		metrics:       m,
	}
}

// IssuePair signs a new pair and stores the refresh hash, replacing any
// previous lineage.  Used on login and verified-registration auto-login.
func (s *TokenService) IssuePair(ctx context.Context, userID, email string) (TokenPair, error) {
	pair, err := s.sign(userID, email)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.StoreRefresh(ctx, userID, utils.HashToken(pair.Refresh.Token)); err != nil {
		return TokenPair{}, storeErr(err, "user not found")
	}
	return pair, nil
}

// VerifyAccess parses an access token.  Errors are utils.ErrTokenExpired
// or utils.ErrTokenInvalid.
func (s *TokenService) VerifyAccess(raw string) (utils.Claims, error) {
	return utils.ParseIdentity(s.accessSecret, raw)
}

// Rotate exchanges a refresh token for a new pair.  The swap is a
// compare-and-set on the stored hash, so of two concurrent rotations of
// one token exactly one succeeds and the other gets ErrAccessDenied.
func (s *TokenService) Rotate(ctx context.Context, raw string) (TokenPair, utils.Claims, error) {
	claims, err := utils.ParseIdentity(s.refreshSecret, raw)
	if err != nil {
		s.metrics.Refresh("denied")
		return TokenPair{}, utils.Claims{}, ErrAccessDenied
	}
	stored, err := s.store.RefreshHash(ctx, claims.UserID)
	if err != nil {
		err = storeErr(err, "")
		if apperr.KindOf(err) == apperr.KindNotFound {
			s.metrics.Refresh("denied")
			return TokenPair{}, utils.Claims{}, ErrAccessDenied
		}
		s.metrics.Refresh("error")
		return TokenPair{}, utils.Claims{}, err
	}
	presented := utils.HashToken(raw)
	if !utils.HashesEqual(stored, presented) {
		s.metrics.Refresh("denied")
		s.log.Info("refresh token reuse or revoked lineage", zap.String("user_id", claims.UserID))
		return TokenPair{}, utils.Claims{}, ErrAccessDenied
	}
	pair, err := s.sign(claims.UserID, claims.Email)
	if err != nil {
		s.metrics.Refresh("error")
		return TokenPair{}, utils.Claims{}, err
	}
	won, err := s.store.SwapRefresh(ctx, claims.UserID, stored, utils.HashToken(pair.Refresh.Token))
	if err != nil {
		s.metrics.Refresh("error")
		return TokenPair{}, utils.Claims{}, storeErr(err, "")
	}
	if !won {
		s.metrics.Refresh("lost_race")
		return TokenPair{}, utils.Claims{}, ErrAccessDenied
	}
	s.metrics.Refresh("rotated")
	return pair, claims, nil
}

// Revoke clears the refresh slot of the token's owner when raw is still
// the current token.  Unverifiable or superseded tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	claims, err := utils.ParseIdentity(s.refreshSecret, raw)
	if err != nil {
		return nil
	}
	stored, err := s.store.RefreshHash(ctx, claims.UserID)
	if err != nil {
		if apperr.KindOf(storeErr(err, "")) == apperr.KindNotFound {
			return nil
		}
		return storeErr(err, "")
	}
	if !utils.HashesEqual(stored, utils.HashToken(raw)) {
		return nil
	}
	return storeErr(s.store.ClearRefresh(ctx, claims.UserID), "")
}

// RevokeAll empties userID's refresh slot whatever token it holds.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	return storeErr(s.store.ClearRefresh(ctx, userID), "")
}

// AccessTTL and RefreshTTL size the auth cookies.
func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) sign(userID, email string) (TokenPair, error) {
	access, err := utils.SignIdentity(s.accessSecret, userID, email, s.accessTTL)
	if err != nil {
		return TokenPair{}, apperr.NewInternal("sign access token", err)
	}
	refresh, err := utils.SignIdentity(s.refreshSecret, userID, email, s.refreshTTL)
	if err != nil {
		return TokenPair{}, apperr.NewInternal("sign refresh token", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}
