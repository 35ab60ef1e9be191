package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskflow/internal/middleware"
	"github.com/iliyamo/taskflow/internal/service"
)

// UserHandler serves the caller's own account.
type UserHandler struct {
	users   *service.UserService
	session *middleware.Session
}

func NewUserHandler(users *service.UserService, session *middleware.Session) *UserHandler {
	return &UserHandler{users: users, session: session}
}

type updateMeReq struct {
	Name string `json:"name"`
}

type deactivateReq struct {
	Password string `json:"password"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.users.Profile(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req updateMeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.users.UpdateName(ctx, middleware.UserID(c), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.users.ChangePassword(ctx, middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Deactivate closes the account and drops the session cookies.
func (h *UserHandler) Deactivate(c echo.Context) error {
	var req deactivateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.users.Deactivate(ctx, middleware.UserID(c), req.Password); err != nil {
		return err
	}
	h.session.ClearCookies(c)
	return c.NoContent(http.StatusNoContent)
}
