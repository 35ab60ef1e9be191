package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskflow/internal/service"
)

// ActivityHandler serves a project's audit trail.
type ActivityHandler struct {
	activity *service.ActivityLogger
}

func NewActivityHandler(activity *service.ActivityLogger) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

func (h *ActivityHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.activity.ListByProject(ctx, c.Param("projectId"), pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}
