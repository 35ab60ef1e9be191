package middleware

// identity.go holds the context keys set by RequireAuth and
// RequireProjectRole and the accessors handlers use to read them.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/service"
)

const (
	ctxIdentity    = "identity"
	ctxProjectRole = "project_role"
)

// Identity returns the authenticated caller.  The zero value means the
// request did not pass RequireAuth.
func Identity(c echo.Context) service.Identity {
	id, _ := c.Get(ctxIdentity).(service.Identity)
	return id
}

// UserID is shorthand for Identity(c).UserID.
func UserID(c echo.Context) string { return Identity(c).UserID }

// ProjectRole returns the caller's role in the project resolved by
// RequireProjectRole, or "" when the route has no project guard.
func ProjectRole(c echo.Context) model.Role {
	r, _ := c.Get(ctxProjectRole).(model.Role)
	return r
}

// rateKeyUser names the caller in rate-limit keys.
func rateKeyUser(c echo.Context) string {
	if uid := UserID(c); uid != "" {
		return uid
	}
	return "anon"
}
