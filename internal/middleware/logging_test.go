package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerAndID(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestID(), RequestLogger(zap.New(core)))
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))

	entries := logs.FilterMessage("http").All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(http.StatusNoContent), entries[0].ContextMap()["status"])
	assert.Equal(t, int64(http.StatusInternalServerError), entries[1].ContextMap()["status"])
	assert.Equal(t, "req-1", entries[1].ContextMap()["request_id"])
}

func TestRecover(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.ErrorLevel)
	e := echo.New()
	e.Use(Recover(zap.New(core)))
	e.GET("/panic", func(c echo.Context) error { panic("oh no") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic").Len())
}
