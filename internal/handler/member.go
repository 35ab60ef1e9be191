package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskflow/internal/middleware"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/service"
)

// MemberHandler serves membership and invitation endpoints.
type MemberHandler struct {
	members *service.MemberService
}

func NewMemberHandler(members *service.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

type addMemberReq struct {
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
}

type roleReq struct {
	Role model.Role `json:"role"`
}

type inviteReq struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func (h *MemberHandler) Add(c echo.Context) error {
	var req addMemberReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.members.Add(ctx, middleware.UserID(c), c.Param("projectId"), req.UserID, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *MemberHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.members.List(ctx, c.Param("projectId"), pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *MemberHandler) ChangeRole(c echo.Context) error {
	var req roleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.members.ChangeRole(ctx, middleware.UserID(c), c.Param("projectId"), c.Param("userId"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *MemberHandler) Remove(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.members.Remove(ctx, middleware.UserID(c), c.Param("projectId"), c.Param("userId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MemberHandler) Invite(c echo.Context) error {
	var req inviteReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	inv, err := h.members.Invite(ctx, middleware.UserID(c), c.Param("projectId"), req.Email, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

// Accept takes the token from ?token, the form the mailed link uses.
func (h *MemberHandler) Accept(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.members.Accept(ctx, middleware.Identity(c), c.QueryParam("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}
