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

// AuthHandler serves registration, verification and the session
// endpoints.  Tokens go out as cookies and, for bearer clients, in the
// body.
type AuthHandler struct {
	auth    *service.AuthService
	session *middleware.Session
}

func NewAuthHandler(auth *service.AuthService, session *middleware.Session) *AuthHandler {
	return &AuthHandler{auth: auth, session: session}
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type emailReq struct {
	Email string `json:"email"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    model.Profile `json:"user"`
	Access  tokenPart     `json:"access"`
	Refresh tokenPart     `json:"refresh"`
}

func (h *AuthHandler) respondPair(c echo.Context, status int, p model.Profile, pair service.TokenPair) error {
	h.session.SetCookies(c, pair)
	return c.JSON(status, authResp{
		User:    p,
		Access:  tokenPart{Token: pair.Access.Token, Expires: pair.Access.Exp},
		Refresh: tokenPart{Token: pair.Refresh.Token, Expires: pair.Refresh.Exp},
	})
}

// Register creates an unverified account and mails its code.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.auth.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": p, "message": "verification code sent"})
}

// VerifyEmail confirms the code and logs the user in.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, pair, err := h.auth.VerifyEmail(ctx, req.Email, req.OTP)
	if err != nil {
		return err
	}
	return h.respondPair(c, http.StatusOK, p, pair)
}

func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.auth.ResendOTP(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "verification code sent"})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, pair, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.respondPair(c, http.StatusOK, p, pair)
}

// Refresh rotates the pair.  The refresh cookie wins over a body token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := middleware.Credentials(c).Refresh
	if raw == "" {
		var req refreshReq
		_ = c.Bind(&req)
		raw = strings.TrimSpace(req.RefreshToken)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	pair, err := h.auth.Refresh(ctx, raw)
	if err != nil {
		h.session.ClearCookies(c)
		return err
	}
	h.session.SetCookies(c, pair)
	return c.JSON(http.StatusOK, echo.Map{
		"access":  tokenPart{Token: pair.Access.Token, Expires: pair.Access.Exp},
		"refresh": tokenPart{Token: pair.Refresh.Token, Expires: pair.Refresh.Exp},
	})
}

// Logout always succeeds for the client: cookies are cleared even when
// the token is unknown.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw := middleware.Credentials(c).Refresh
	if raw == "" {
		var req refreshReq
		_ = c.Bind(&req)
		raw = strings.TrimSpace(req.RefreshToken)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	err := h.auth.Logout(ctx, raw)
	h.session.ClearCookies(c)
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
