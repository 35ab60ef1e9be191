package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/handler"
	"github.com/iliyamo/taskflow/internal/middleware"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/service"
)

func testHandlers() Handlers {
	return Handlers{
		Auth:     handler.NewAuthHandler(nil, nil),
		Users:    handler.NewUserHandler(nil, nil),
		Projects: handler.NewProjectHandler(nil),
		Members:  handler.NewMemberHandler(nil),
		Tasks:    handler.NewTaskHandler(nil),
		Activity: handler.NewActivityHandler(nil),
		Health:   handler.NewHealthHandler(nil, nil),
	}
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	tokens := service.NewTokenService(service.TokenConfig{AccessSecret: "a", RefreshSecret: "r"}, nil, nil, nil)
	gate := service.NewAuthGate(tokens, nil, true, nil)
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler(zap.NewNop())
	Register(e, testHandlers(), Guards{
		Session:  middleware.NewSession(gate, tokens, false, nil),
		Resolver: service.NewMembershipResolver(nil, nil),
	}, nil)
	return e
}

func TestRoleTable(t *testing.T) {
	roles := map[string][]model.Role{}
	for _, r := range Protected(testHandlers()) {
		roles[r.Method+" "+r.Path] = r.Roles
	}
	cases := map[string][]model.Role{
		"GET /projects/:projectId":                    nil,
		"PATCH /projects/:projectId":                  {model.RoleAdmin, model.RoleProjectManager},
		"DELETE /projects/:projectId":                 {model.RoleAdmin},
		"POST /projects/:projectId/invite":            {model.RoleAdmin, model.RoleProjectManager},
		"POST /tasks":                                 {model.RoleAdmin, model.RoleProjectManager, model.RoleLead},
		"PATCH /tasks/:taskId/status":                 {model.RoleAdmin, model.RoleProjectManager, model.RoleLead, model.RoleMember},
		"GET /tasks/:taskId":                          model.Roles,
		"GET /tasks/my":                               nil,
		"POST /users/me/deactivate":                   nil,
		"GET /activity-log/:projectId/activities":     {model.RoleAdmin, model.RoleProjectManager},
		"DELETE /projects/:projectId/members/:userId": {model.RoleAdmin, model.RoleProjectManager},
	}
	for route, want := range cases {
		got, ok := roles[route]
		require.True(t, ok, route)
		assert.Equal(t, want, got, route)
	}
}

func TestRoutesAreMounted(t *testing.T) {
	e := newTestServer(t)
	mounted := map[string]bool{}
	for _, r := range e.Routes() {
		mounted[r.Method+" "+r.Path] = true
	}
	for _, r := range Protected(testHandlers()) {
		assert.True(t, mounted[r.Method+" /v1"+r.Path], r.Path)
	}
	for _, path := range []string{"/v1/auth/login", "/v1/auth/register", "/v1/auth/verify-email", "/v1/auth/refresh"} {
		assert.True(t, mounted["POST "+path], path)
	}
}

func TestProtectedRoutesNeedCredentials(t *testing.T) {
	e := newTestServer(t)
	for _, path := range []string{"/v1/projects", "/v1/tasks/my", "/v1/users/me"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"no credential"}`, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
