package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/farmtech/livestock-auth/internal/model"
	"github.com/farmtech/livestock-auth/internal/telemetry"
	"github.com/farmtech/livestock-auth/internal/token"
)

const bearerPrefix = "bearer "

// TokenVerifier is the part of token.Service the gate needs.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// IdentityLoader is the part of service.Directory the gate needs.
type IdentityLoader interface {
	LoadActiveByEmail(ctx context.Context, email string) (*model.User, error)
}

// GateOption customizes Authenticate.
type GateOption func(*gate)

func GateLogger(l *zap.Logger) GateOption         { return func(g *gate) { g.log = l } }
func GateMetrics(m *telemetry.Metrics) GateOption { return func(g *gate) { g.metrics = m } }
func GateClock(now func() time.Time) GateOption   { return func(g *gate) { g.now = now } }

type gate struct {
	tokens  TokenVerifier
	dir     IdentityLoader
	log     *zap.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Authenticate resolves a bearer access token into a Principal. It never
// rejects a request: any failure leaves the request anonymous and the
// authorization stage decides. The next handler is always called.
func Authenticate(tokens TokenVerifier, dir IdentityLoader, opts ...GateOption) echo.MiddlewareFunc {
	g := &gate{tokens: tokens, dir: dir, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if PrincipalFrom(c) == nil {
				if p := g.resolve(c); p != nil {
					SetPrincipal(c, p)
				}
			}
			g.metrics.RecordGate(c.Request().Context(), PrincipalFrom(c) != nil)
			return next(c)
		}
	}
}

func (g *gate) resolve(c echo.Context) *Principal {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) <= len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return nil
	}
	raw := strings.TrimSpace(h[len(bearerPrefix):])

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		g.log.Debug("bearer token rejected", zap.String("path", c.Request().URL.Path), zap.Error(err))
		return nil
	}
	if claims.TokenType != token.TypeAccess {
		g.log.Debug("non-access token presented as bearer", zap.String("type", string(claims.TokenType)))
		return nil
	}

	u, err := g.dir.LoadActiveByEmail(c.Request().Context(), claims.Subject)
	if err != nil {
		g.log.Debug("bearer subject not resolvable", zap.Error(err))
		return nil
	}
	if !strings.EqualFold(u.Email, claims.Subject) || !claims.Expiry().After(g.now()) {
		return nil
	}
	return principalOf(u)
}
