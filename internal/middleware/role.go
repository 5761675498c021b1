package middleware

import (
	"slices"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/farmtech/livestock-auth/internal/errs"
	"github.com/farmtech/livestock-auth/internal/model"
	"github.com/farmtech/livestock-auth/internal/telemetry"
)

// Authorize enforces policy against the principal attached by Authenticate.
// A rejection is returned as the *errs.DeniedError itself; the echo error
// handler turns it into 401 (anonymous) or 403 (wrong role).
func Authorize(policy *Policy, log *zap.Logger, metrics *telemetry.Metrics) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rule, err := policy.Decide(req.Method, req.URL.Path, PrincipalFrom(c))
			pattern := ""
			if rule != nil {
				pattern = rule.Pattern
			}
			metrics.RecordDecision(req.Context(), pattern, err == nil)
			if err != nil {
				log.Debug("request denied", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
				return err
			}
			return next(c)
		}
	}
}

// RequireRole is a route-level guard for handlers mounted outside the
// policy table. Anonymous callers and callers without one of roles are
// rejected the same way Authorize rejects them.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who := PrincipalFrom(c)
			switch {
			case who == nil:
				return &errs.DeniedError{Path: c.Request().URL.Path, Anonymous: true}
			case !slices.Contains(roles, who.Role):
				return &errs.DeniedError{Path: c.Request().URL.Path, Role: who.Role.String()}
			}
			return next(c)
		}
	}
}
