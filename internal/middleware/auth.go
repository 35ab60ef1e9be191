package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/service"
)

// Cookie names carrying the session pair.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Session adapts the AuthGate to echo and owns the auth cookies.
type Session struct {
	gate       *service.AuthGate
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
}

// NewSession sizes the cookies from the token lifetimes.  secure marks
// them Secure, which browsers require outside localhost.
func NewSession(gate *service.AuthGate, tokens *service.TokenService, secure bool, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		gate:       gate,
		secure:     secure,
		accessTTL:  tokens.AccessTTL(),
		refreshTTL: tokens.RefreshTTL(),
		log:        log.Named("session"),
	}
}

// RequireAuth admits only requests the gate authenticates.  When the gate
// rotated the pair, both cookies are replaced before the handler runs so
// the response carries them whatever the handler writes.
func (s *Session) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := s.gate.Evaluate(c.Request().Context(), Credentials(c))
			if d.State != service.Authenticated {
				if d.Reason != service.NoCredential {
					s.ClearCookies(c)
				}
				return d.Err()
			}
			if d.Rotated != nil {
				s.SetCookies(c, *d.Rotated)
				s.log.Debug("session refreshed", zap.String("user_id", d.Identity.UserID))
			}
			c.Set(ctxIdentity, d.Identity)
			return next(c)
		}
	}
}

// Credentials extracts the access token from the bearer header, falling
// back to the cookie, and the refresh token from its cookie.
func Credentials(c echo.Context) service.Credentials {
	var creds service.Credentials
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		creds.Access = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if creds.Access == "" {
		if ck, err := c.Cookie(AccessCookie); err == nil {
			creds.Access = ck.Value
		}
	}
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		creds.Refresh = ck.Value
	}
	return creds
}

// SetCookies writes both halves of pair.
func (s *Session) SetCookies(c echo.Context, pair service.TokenPair) {
	c.SetCookie(s.cookie(AccessCookie, pair.Access.Token, s.accessTTL))
	c.SetCookie(s.cookie(RefreshCookie, pair.Refresh.Token, s.refreshTTL))
}

// ClearCookies expires both cookies.
func (s *Session) ClearCookies(c echo.Context) {
	c.SetCookie(s.cookie(AccessCookie, "", -1))
	c.SetCookie(s.cookie(RefreshCookie, "", -1))
}

func (s *Session) cookie(name, value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl < 0 {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	} else {
		ck.MaxAge = int(ttl / time.Second)
	}
	return ck
}
