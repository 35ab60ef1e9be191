package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskflow/internal/middleware"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/service"
)

// ProjectHandler serves project CRUD.  Role checks run in the route's
// middleware; handlers only see admitted requests.
type ProjectHandler struct {
	projects *service.ProjectService
}

func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type createProjectReq struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Visibility  model.Visibility `json:"visibility"`
}

type updateProjectReq struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Visibility  *model.Visibility `json:"visibility"`
}

func (h *ProjectHandler) Create(c echo.Context) error {
	var req createProjectReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.projects.Create(ctx, middleware.UserID(c), service.ProjectInput{
		Name: req.Name, Description: req.Description, Visibility: req.Visibility,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProjectHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.projects.List(ctx, middleware.UserID(c), pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *ProjectHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.projects.Get(ctx, middleware.UserID(c), c.Param("projectId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) Update(c echo.Context) error {
	var req updateProjectReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.projects.Update(ctx, middleware.UserID(c), c.Param("projectId"), service.ProjectPatch{
		Name: req.Name, Description: req.Description, Visibility: req.Visibility,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.projects.Delete(ctx, middleware.UserID(c), c.Param("projectId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
