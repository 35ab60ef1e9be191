// Package router wires handlers to paths.  Every protected route declares
// its project role allow-list as data in the tables below; the guard chain
// is RequireAuth, then RequireProjectRole when the list is non-nil.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskflow/internal/handler"
	"github.com/iliyamo/taskflow/internal/middleware"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/service"
)

// Role allow-lists shared by several routes.
var (
	anyRole      = []model.Role{model.RoleAdmin, model.RoleProjectManager, model.RoleLead, model.RoleMember, model.RoleUser}
	managers     = []model.Role{model.RoleAdmin, model.RoleProjectManager}
	leads        = []model.Role{model.RoleAdmin, model.RoleProjectManager, model.RoleLead}
	contributors = []model.Role{model.RoleAdmin, model.RoleProjectManager, model.RoleLead, model.RoleMember}
	adminOnly    = []model.Role{model.RoleAdmin}
)

// Route is one protected endpoint.  Roles nil means any authenticated
// caller with no project guard.
type Route struct {
	Method  string
	Path    string
	Handler echo.HandlerFunc
	Roles   []model.Role
}

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Projects *handler.ProjectHandler
	Members  *handler.MemberHandler
	Tasks    *handler.TaskHandler
	Activity *handler.ActivityHandler
	Health   *handler.HealthHandler
}

// Guards are the middleware the routes are built from.
type Guards struct {
	Session   *middleware.Session
	Resolver  *service.MembershipResolver
	RateLimit echo.MiddlewareFunc
}

// Protected returns the route table of the authenticated API.
func Protected(h Handlers) []Route {
	return []Route{
		{http.MethodGet, "/users/me", h.Users.Me, nil},
		{http.MethodPatch, "/users/me", h.Users.UpdateMe, nil},
		{http.MethodPatch, "/users/me/password", h.Users.ChangePassword, nil},
		{http.MethodPost, "/users/me/deactivate", h.Users.Deactivate, nil},

		{http.MethodPost, "/projects", h.Projects.Create, nil},
		{http.MethodGet, "/projects", h.Projects.List, nil},
		{http.MethodPost, "/projects/invitations/accept", h.Members.Accept, nil},
		{http.MethodGet, "/projects/:projectId", h.Projects.Get, nil},
		{http.MethodPatch, "/projects/:projectId", h.Projects.Update, managers},
		{http.MethodDelete, "/projects/:projectId", h.Projects.Delete, adminOnly},

		{http.MethodGet, "/projects/:projectId/members", h.Members.List, anyRole},
		{http.MethodPost, "/projects/:projectId/members", h.Members.Add, managers},
		{http.MethodPatch, "/projects/:projectId/members/:userId", h.Members.ChangeRole, managers},
		{http.MethodDelete, "/projects/:projectId/members/:userId", h.Members.Remove, managers},
		{http.MethodPost, "/projects/:projectId/invite", h.Members.Invite, managers},

		{http.MethodGet, "/projects/:projectId/tasks", h.Tasks.ListByProject, nil},
		{http.MethodGet, "/tasks/my", h.Tasks.ListMine, nil},
		{http.MethodPost, "/tasks", h.Tasks.Create, leads},
		{http.MethodGet, "/tasks/:taskId", h.Tasks.Get, anyRole},
		{http.MethodPatch, "/tasks/:taskId", h.Tasks.Update, contributors},
		{http.MethodPatch, "/tasks/:taskId/status", h.Tasks.UpdateStatus, contributors},
		{http.MethodDelete, "/tasks/:taskId", h.Tasks.Delete, leads},

		{http.MethodGet, "/activity-log/:projectId/activities", h.Activity.List, managers},
	}
}

// Register mounts the public, auth and protected routes on e.
func Register(e *echo.Echo, h Handlers, g Guards, metrics http.Handler) {
	e.GET("/health", h.Health.Health)
	e.GET("/readyz", h.Health.Ready)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	auth := e.Group("/v1/auth")
	limited := auth
	if g.RateLimit != nil {
		limited = auth.Group("", g.RateLimit)
	}
	limited.POST("/register", h.Auth.Register)
	limited.POST("/verify-email", h.Auth.VerifyEmail)
	limited.POST("/resend-otp", h.Auth.ResendOTP)
	limited.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	v1 := e.Group("/v1", g.Session.RequireAuth())
	for _, r := range Protected(h) {
		var mw []echo.MiddlewareFunc
		if r.Roles != nil {
			mw = append(mw, middleware.RequireProjectRole(g.Resolver, r.Roles...))
		}
		v1.Add(r.Method, r.Path, r.Handler, mw...)
	}
}
