package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/farmtech/livestock-auth/internal/errs"
	"github.com/farmtech/livestock-auth/internal/middleware"
	"github.com/farmtech/livestock-auth/internal/model"
	"github.com/farmtech/livestock-auth/internal/service"
)

type stubSessions struct {
	service.SessionService

	lastRegister service.RegisterInput
	lastToken    string
	err          error
	deactivated  uint64
}

func (s *stubSessions) result() service.AuthResult {
	return service.AuthResult{
		UserSummary:  model.UserSummary{ID: 1, Username: "alice", Email: "alice@x.com", Role: model.RoleFarmer},
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
	}
}

func (s *stubSessions) Register(_ context.Context, in service.RegisterInput) (service.AuthResult, error) {
	s.lastRegister = in
	return s.result(), s.err
}

func (s *stubSessions) Login(context.Context, string, string) (service.AuthResult, error) {
	return s.result(), s.err
}

func (s *stubSessions) Refresh(_ context.Context, raw string) (service.AuthResult, error) {
	s.lastToken = raw
	return s.result(), s.err
}

func (s *stubSessions) Logout(_ context.Context, raw string) error {
	s.lastToken = raw
	return s.err
}

func (s *stubSessions) UserCount(context.Context) (int64, error) { return 42, s.err }

func (s *stubSessions) Deactivate(_ context.Context, id uint64) error {
	s.deactivated = id
	return s.err
}

func newTestEcho(t *testing.T, s *stubSessions, who *middleware.Principal) *echo.Echo {
	t.Helper()
	h := NewAuthHandler(s)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zaptest.NewLogger(t))
	if who != nil {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				middleware.SetPrincipal(c, who)
				return next(c)
			}
		})
	}
	e.POST("/api/auth/register", h.Register)
	e.POST("/api/auth/login", h.Login)
	e.POST("/api/auth/refresh", h.Refresh)
	e.POST("/api/auth/logout", h.Logout)
	e.GET("/api/users/me", h.Me)
	e.GET("/api/test", h.Ping)
	e.GET("/api/admin/users/count", h.UserCount)
	e.DELETE("/api/admin/users/:id", h.DeactivateUser)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestRegister_Created(t *testing.T) {
	t.Parallel()
	s := &stubSessions{}
	rec := do(newTestEcho(t, s, nil), http.MethodPost, "/api/auth/register",
		`{"username":"alice","email":"alice@x.com","password":"secret1","role":"FARMER","phoneNumber":"555"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "access", data["accessToken"])
	assert.Equal(t, "refresh", data["refreshToken"])
	assert.Equal(t, "Bearer", data["tokenType"])
	assert.Equal(t, float64(1), data["userId"])
	assert.Equal(t, "FARMER", data["role"])
	assert.Equal(t, "555", s.lastRegister.Phone)
}

func TestRegister_ErrorStatuses(t *testing.T) {
	t.Parallel()
	rec := do(newTestEcho(t, &stubSessions{err: errs.Validation("password", "Password is required")}, nil),
		http.MethodPost, "/api/auth/register", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password is required", decode(t, rec)["message"])

	rec = do(newTestEcho(t, &stubSessions{err: &errs.DuplicateError{Field: "email"}}, nil),
		http.MethodPost, "/api/auth/register", `{"username":"alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(newTestEcho(t, &stubSessions{}, nil), http.MethodPost, "/api/auth/register", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_Unauthorized(t *testing.T) {
	t.Parallel()
	rec := do(newTestEcho(t, &stubSessions{err: errs.ErrAuthenticationFailed}, nil),
		http.MethodPost, "/api/auth/login", `{"email":"alice@x.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestRefreshAndLogout_TokenSources(t *testing.T) {
	t.Parallel()
	s := &stubSessions{}
	e := newTestEcho(t, s, nil)

	rec := do(e, http.MethodPost, "/api/auth/refresh?refreshToken=from-query", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-query", s.lastToken)

	rec = do(e, http.MethodPost, "/api/auth/logout", `{"refreshToken":"from-body"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-body", s.lastToken)

	s.err = errs.ErrTokenRevokedOrUnknown
	rec = do(e, http.MethodPost, "/api/auth/refresh", `{"refreshToken":"gone"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeAndPing(t *testing.T) {
	t.Parallel()
	who := &middleware.Principal{UserID: 3, Username: "alice", Email: "alice@x.com", Role: model.RoleFarmer}
	e := newTestEcho(t, &stubSessions{}, who)

	rec := do(e, http.MethodGet, "/api/users/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(3), data["userId"])
	assert.Equal(t, "FARMER", data["role"])

	rec = do(e, http.MethodGet, "/api/test", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	anon := newTestEcho(t, &stubSessions{}, nil)
	assert.Equal(t, http.StatusUnauthorized, do(anon, http.MethodGet, "/api/users/me", "").Code)
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()
	admin := &middleware.Principal{UserID: 1, Role: model.RoleAdmin}
	s := &stubSessions{}
	e := newTestEcho(t, s, admin)

	rec := do(e, http.MethodGet, "/api/admin/users/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(42), decode(t, rec)["data"].(map[string]any)["count"])

	assert.Equal(t, http.StatusOK, do(e, http.MethodDelete, "/api/admin/users/9", "").Code)
	assert.Equal(t, uint64(9), s.deactivated)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodDelete, "/api/admin/users/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodDelete, "/api/admin/users/1", "").Code)

	s.err = errs.NoActiveIdentity(errs.ErrIdentityNotFound)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/api/admin/users/77", "").Code)
}
