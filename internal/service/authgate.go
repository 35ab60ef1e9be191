package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/model"
)

// GateState is the outcome of one AuthGate evaluation.
type GateState int

const (
	Rejected GateState = iota
	Authenticated
)

// RejectReason explains a Rejected outcome.
type RejectReason string

const (
	NoCredential   RejectReason = "no credential"
	SessionExpired RejectReason = "session expired"
	InvalidSession RejectReason = "invalid session"
	Reauthenticate RejectReason = "reauthentication required"
	AccountBlocked RejectReason = "account is not active"
	Unverified     RejectReason = "email not verified"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Email  string
}

// Credentials are the raw tokens presented by the client.
type Credentials struct {
	Access  string
	Refresh string
}

// Decision is the result of Evaluate.  Rotated is set when a silent
// refresh happened and the new pair must be sent back to the client.
type Decision struct {
	State    GateState
	Identity Identity
	Reason   RejectReason
	Rotated  *TokenPair
}

// Err converts a rejection into an Unauthorized error.
func (d Decision) Err() error {
	if d.State == Authenticated {
		return nil
	}
	return apperr.NewUnauthorized(string(d.Reason))
}

// UserLookup loads the account whose status gates authentication.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// AuthGate decides per request whether the caller is authenticated,
// silently rotating an expired session when a valid refresh token is
// present.  A request is either Authenticated with a coherent token pair
// or Rejected; it never proceeds without an identity.
type AuthGate struct {
	tokens          *TokenService
	users           UserLookup
	requireVerified bool
	log             *zap.Logger
}

func NewAuthGate(tokens *TokenService, users UserLookup, requireVerified bool, log *zap.Logger) *AuthGate {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthGate{tokens: tokens, users: users, requireVerified: requireVerified, log: log.Named("authgate")}
}

func (g *AuthGate) Evaluate(ctx context.Context, creds Credentials) Decision {
	if creds.Access == "" && creds.Refresh == "" {
		return reject(NoCredential)
	}
	if creds.Access != "" {
		claims, err := g.tokens.VerifyAccess(creds.Access)
		if err == nil {
			if reason, ok := g.admit(ctx, claims.UserID); !ok {
				return reject(reason)
			}
			return Decision{State: Authenticated, Identity: Identity{UserID: claims.UserID, Email: claims.Email}}
		}
	}

	if creds.Refresh == "" {
		return reject(SessionExpired)
	}
	pair, _, err := g.tokens.Rotate(ctx, creds.Refresh)
	if err != nil {
		if !errors.Is(err, ErrAccessDenied) {
			g.log.Error("silent refresh failed", zap.Error(err))
		}
		return reject(InvalidSession)
	}
	// The fresh access token must still resolve to an active account; a
	// user deactivated mid-session cannot ride the refresh through.
	claims, err := g.tokens.VerifyAccess(pair.Access.Token)
	if err != nil {
		return reject(Reauthenticate)
	}
	if _, ok := g.admit(ctx, claims.UserID); !ok {
		return reject(Reauthenticate)
	}
	return Decision{
		State:    Authenticated,
		Identity: Identity{UserID: claims.UserID, Email: claims.Email},
		Rotated:  &pair,
	}
}

func (g *AuthGate) admit(ctx context.Context, userID string) (RejectReason, bool) {
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if apperr.KindOf(storeErr(err, "")) != apperr.KindNotFound {
			g.log.Error("load user for auth", zap.String("user_id", userID), zap.Error(err))
		}
		return Reauthenticate, false
	}
	if u.Status != model.UserActive {
		return AccountBlocked, false
	}
	if g.requireVerified && !u.Verified {
		return Unverified, false
	}
	return "", true
}

func reject(r RejectReason) Decision { return Decision{State: Rejected, Reason: r} }
