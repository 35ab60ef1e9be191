package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/service"
)

// maxReferenceBody bounds how much of a JSON body is buffered to find a
// projectId.
const maxReferenceBody = 1 << 20

// RequireProjectRole resolves the caller's membership in the project the
// request targets and admits it only when the role is in roles.  It must
// run after RequireAuth.  A taskId path parameter always decides the
// project; caller supplied query or body projectId values are ignored
// then.  Otherwise the project comes from the projectId path parameter,
// query parameter or JSON body field, in that order.
func RequireProjectRole(resolver *service.MembershipResolver, roles ...model.Role) echo.MiddlewareFunc {
	required := append([]model.Role(nil), roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ref, err := reference(c)
			if err != nil {
				return err
			}
			m, err := resolver.Resolve(c.Request().Context(), UserID(c), ref)
			if err != nil {
				return err
			}
			if !service.Allow(required, m.Role) {
				return service.ErrRoleDenied(m.Role)
			}
			c.Set(ctxProjectRole, m.Role)
			return next(c)
		}
	}
}

func reference(c echo.Context) (service.Reference, error) {
	ref := service.Reference{
		ProjectID: strings.TrimSpace(c.Param("projectId")),
		TaskID:    strings.TrimSpace(c.Param("taskId")),
	}
	if ref.TaskID != "" {
		return ref, nil
	}
	if ref.ProjectID == "" {
		ref.ProjectID = strings.TrimSpace(c.QueryParam("projectId"))
	}
	if ref.ProjectID == "" {
		id, err := bodyProjectID(c)
		if err != nil {
			return service.Reference{}, err
		}
		ref.ProjectID = id
	}
	return ref, nil
}

// bodyProjectID peeks at a JSON body and restores it for the handler.
func bodyProjectID(c echo.Context) (string, error) {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return "", nil
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxReferenceBody))
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return "", nil
	}
	var probe struct {
		ProjectID string `json:"projectId"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		// Malformed bodies are rejected by the handler's Bind.
		return "", nil
	}
	return strings.TrimSpace(probe.ProjectID), nil
}
