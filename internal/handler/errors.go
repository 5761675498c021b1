package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/farmtech/livestock-auth/internal/errs"
)

// response is the envelope every JSON endpoint returns.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, response{Success: true, Message: msg, Data: data})
}

// Status maps an error to the HTTP status and the message safe to show the
// client. Unknown errors become a generic 500.
func Status(err error) (int, string) {
	var (
		he     *echo.HTTPError
		ve     *errs.ValidationError
		de     *errs.DuplicateError
		denied *errs.DeniedError
	)
	switch {
	case errors.As(err, &he):
		if msg, isStr := he.Message.(string); isStr {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &de):
		return http.StatusConflict, de.Error()
	case errors.As(err, &denied):
		if denied.Anonymous {
			return http.StatusUnauthorized, "Authentication required"
		}
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, errs.ErrAuthenticationFailed):
		return http.StatusUnauthorized, errs.ErrAuthenticationFailed.Error()
	case errors.Is(err, errs.ErrTokenRevokedOrUnknown):
		return http.StatusUnauthorized, "Refresh token revoked or unknown"
	case errors.Is(err, errs.ErrInvalidRefreshToken),
		errors.Is(err, errs.ErrTokenMalformed),
		errors.Is(err, errs.ErrSignatureInvalid),
		errors.Is(err, errs.ErrTokenExpired):
		return http.StatusUnauthorized, "Invalid refresh token"
	case errors.Is(err, errs.ErrNoActiveIdentity):
		return http.StatusUnauthorized, errs.ErrNoActiveIdentity.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

// ErrorHandler renders every error returned by handlers and middleware in
// the response envelope. Detail of 5xx errors goes to the log only.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := Status(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
			)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, response{Success: false, Message: msg})
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(fmt.Errorf("%w (original: %v)", werr, err)))
		}
	}
}
