package middleware

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/farmtech/livestock-auth/internal/model"
)

// Principal is the authenticated caller of one request. It lives only on
// that request's echo and std contexts.
type Principal struct {
	UserID   uint64
	Username string
	Email    string
	Role     model.Role
}

func principalOf(u *model.User) *Principal {
	return &Principal{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

const principalKey = "auth.principal"

type ctxKey struct{}

// SetPrincipal attaches p to c and to the request context.
func SetPrincipal(c echo.Context, p *Principal) {
	c.Set(principalKey, p)
	r := c.Request()
	c.SetRequest(r.WithContext(WithPrincipal(r.Context(), p)))
}

// PrincipalFrom returns the principal attached by Authenticate, or nil for
// anonymous requests.
func PrincipalFrom(c echo.Context) *Principal {
	p, _ := c.Get(principalKey).(*Principal)
	return p
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext is PrincipalFrom for code that only sees a
// context.Context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxKey{}).(*Principal)
	return p
}

// userID returns the caller's id for rate-limit keys, or "anon".
func userID(c echo.Context) string {
	if p := PrincipalFrom(c); p != nil {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "anon"
}
