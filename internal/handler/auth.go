package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/farmtech/livestock-auth/internal/errs"
	"github.com/farmtech/livestock-auth/internal/middleware"
	"github.com/farmtech/livestock-auth/internal/service"
)

// AuthHandler exposes the session lifecycle and the identity endpoints.
type AuthHandler struct {
	Sessions service.SessionService
}

func NewAuthHandler(s service.SessionService) *AuthHandler {
	return &AuthHandler{Sessions: s}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type principalResp struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

var errBadBody = echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")

// Register: create identity and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	res, err := h.Sessions.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "User registered successfully", res)
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	res, err := h.Sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Login successful", res)
}

// Refresh: rotate a refresh token into a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}
	res, err := h.Sessions.Refresh(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Token refreshed successfully", res)
}

// Logout: revoke a refresh token. Unknown tokens succeed too.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}
	if err := h.Sessions.Logout(c.Request().Context(), raw); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Logout successful", nil)
}

// refreshTokenFrom accepts the token as ?refreshToken= or in the JSON body.
func refreshTokenFrom(c echo.Context) (string, error) {
	if q := strings.TrimSpace(c.QueryParam("refreshToken")); q != "" {
		return q, nil
	}
	var req refreshReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return "", errBadBody
		}
	}
	return req.RefreshToken, nil
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return &errs.DeniedError{Path: c.Request().URL.Path, Anonymous: true}
	}
	return ok(c, http.StatusOK, "Current user", principalResp{
		UserID:   p.UserID,
		Username: p.Username,
		Email:    p.Email,
		Role:     p.Role.String(),
	})
}

// Ping confirms that the bearer token in use authenticates.
func (h *AuthHandler) Ping(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return &errs.DeniedError{Path: c.Request().URL.Path, Anonymous: true}
	}
	return ok(c, http.StatusOK, "Authentication is working", echo.Map{"email": p.Email, "role": p.Role.String()})
}

// UserCount returns the number of non-deleted identities.
func (h *AuthHandler) UserCount(c echo.Context) error {
	n, err := h.Sessions.UserCount(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "User count", echo.Map{"count": n})
}

// DeactivateUser soft-deletes the identity in :id.
func (h *AuthHandler) DeactivateUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return errs.Validation("id", "User id must be a positive integer")
	}
	if p := middleware.PrincipalFrom(c); p != nil && p.UserID == id {
		return errs.Validation("id", "You cannot deactivate your own account")
	}
	if err := h.Sessions.Deactivate(c.Request().Context(), id); err != nil {
		if errors.Is(err, errs.ErrIdentityNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return err
	}
	return ok(c, http.StatusOK, "User deactivated", nil)
}
