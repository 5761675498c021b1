// Package router wires handlers and the authentication/authorization chain
// onto an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/farmtech/livestock-auth/internal/handler"
	"github.com/farmtech/livestock-auth/internal/middleware"
	"github.com/farmtech/livestock-auth/internal/telemetry"
)

// Deps carries everything the routes need. Limiter, Metrics, MetricsHandler
// and Readiness are optional.
type Deps struct {
	Auth     *handler.AuthHandler
	Tokens   middleware.TokenVerifier
	Identity middleware.IdentityLoader
	Policy   *middleware.Policy
	Log      *zap.Logger

	Limiter        echo.MiddlewareFunc
	Metrics        *telemetry.Metrics
	MetricsHandler http.Handler
	Readiness      map[string]handler.Pinger
}

// Register installs the middleware chain in a fixed order (request id,
// logging, recover, authenticate, authorize) and then the routes.
func Register(e *echo.Echo, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	for _, s := range d.Policy.Shadowed() {
		log.Warn("policy rule is shadowed and never applies",
			zap.Int("index", s.Index),
			zap.Stringer("rule", s.Rule),
			zap.Stringer("shadowed_by", s.By),
		)
	}

	e.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.Recover(log),
		middleware.Authenticate(d.Tokens, d.Identity, middleware.GateLogger(log), middleware.GateMetrics(d.Metrics)),
		middleware.Authorize(d.Policy, log, d.Metrics),
	)

	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.Readiness))
	if d.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(d.MetricsHandler))
	}

	limit := d.Limiter
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	a := d.Auth
	auth := e.Group("/api/auth")
	auth.POST("/register", a.Register, limit)
	auth.POST("/login", a.Login, limit)
	auth.POST("/refresh", a.Refresh, limit)
	auth.POST("/logout", a.Logout)

	e.GET("/api/users/me", a.Me)
	e.GET("/api/test", a.Ping)

	admin := e.Group("/api/admin")
	admin.GET("/users/count", a.UserCount)
	admin.DELETE("/users/:id", a.DeactivateUser)
}
