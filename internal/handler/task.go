package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskflow/internal/middleware"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/service"
)

// TaskHandler serves task endpoints.
type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

type createTaskReq struct {
	ProjectID    string             `json:"projectId"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Status       model.TaskStatus   `json:"status"`
	Priority     model.TaskPriority `json:"priority"`
	AssignedToID string             `json:"assignedToId"`
	DueDate      *time.Time         `json:"dueDate"`
}

type updateTaskReq struct {
	Title        *string             `json:"title"`
	Description  *string             `json:"description"`
	Priority     *model.TaskPriority `json:"priority"`
	AssignedToID *string             `json:"assignedToId"`
	DueDate      *time.Time          `json:"dueDate"`
}

type statusReq struct {
	Status model.TaskStatus `json:"status"`
}

func (h *TaskHandler) Create(c echo.Context) error {
	var req createTaskReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.tasks.Create(ctx, middleware.UserID(c), service.TaskInput{
		ProjectID:    req.ProjectID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		AssignedToID: req.AssignedToID,
		DueDate:      req.DueDate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TaskHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.tasks.Get(ctx, c.Param("taskId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) Update(c echo.Context) error {
	var req updateTaskReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.tasks.Update(ctx, middleware.UserID(c), c.Param("taskId"), service.TaskPatch{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		AssignedToID: req.AssignedToID,
		DueDate:      req.DueDate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateStatus passes the resolved project role on so the service can
// allow assignees below LEAD.
func (h *TaskHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.tasks.UpdateStatus(ctx, middleware.UserID(c), middleware.ProjectRole(c), c.Param("taskId"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.tasks.Delete(ctx, middleware.UserID(c), c.Param("taskId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListByProject accepts ?status, ?priority and ?search filters.
func (h *TaskHandler) ListByProject(c echo.Context) error {
	f := model.TaskFilter{
		Status:   model.TaskStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))),
		Priority: model.TaskPriority(strings.ToUpper(strings.TrimSpace(c.QueryParam("priority")))),
		Search:   strings.TrimSpace(c.QueryParam("search")),
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.tasks.ListByProject(ctx, middleware.UserID(c), c.Param("projectId"), f, pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *TaskHandler) ListMine(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.tasks.ListMine(ctx, middleware.UserID(c), pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}
