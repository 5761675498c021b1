// Package token issues and verifies the signed access and refresh tokens of
// the auth core. Tokens are compact HS256 JWTs; refresh tokens are also
// registered in a repository.TokenStore.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/farmtech/livestock-auth/internal/model"
)

// Type distinguishes access tokens from refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the payload of every token. Subject carries the email.
type Claims struct {
	UserID    uint64     `json:"userId"`
	Username  string     `json:"username,omitempty"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	TokenType Type       `json:"tokenType"`
	jwt.RegisteredClaims
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued is a signed token together with its expiry.
type Issued struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
