package token

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/farmtech/livestock-auth/internal/errs"
	"github.com/farmtech/livestock-auth/internal/model"
	"github.com/farmtech/livestock-auth/internal/repository"
	"github.com/farmtech/livestock-auth/internal/utils"
)

// MinSecretBytes is the smallest accepted HMAC key (256 bits).
const MinSecretBytes = 32

var signingMethod = jwt.SigningMethodHS256

// strict decoding rejects non-canonical trailing bits, so changing any
// character of the signature segment changes the decoded bytes.
var segmentEncoding = base64.RawURLEncoding.Strict()

// Service signs and verifies tokens. It is stateless apart from the store
// used to register refresh tokens and is safe for concurrent use.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      repository.TokenStore
	now        func() time.Time
}

// NewService validates the key material and TTLs. A secret shorter than
// MinSecretBytes is a *errs.ConfigError.
func NewService(secret []byte, accessTTL, refreshTTL time.Duration, store repository.TokenStore) (*Service, error) {
	if len(secret) < MinSecretBytes {
		return nil, &errs.ConfigError{Key: "JWT_SECRET", Reason: fmt.Sprintf("must be at least %d bytes", MinSecretBytes)}
	}
	if accessTTL <= 0 {
		return nil, &errs.ConfigError{Key: "ACCESS_TOKEN_TTL", Reason: "must be positive"}
	}
	if refreshTTL <= 0 {
		return nil, &errs.ConfigError{Key: "REFRESH_TOKEN_TTL", Reason: "must be positive"}
	}
	if store == nil {
		return nil, &errs.ConfigError{Key: "REVOCATION_BACKEND", Reason: "token store is required"}
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Service{
		secret:     key,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueAccess signs a short-lived access token for u.
func (s *Service) IssueAccess(u *model.User) (Issued, error) {
	return s.issue(u, TypeAccess, s.accessTTL)
}

// IssueRefresh signs a refresh token for u and registers it in the store
// before returning it. A token that could not be registered is never
// handed out.
func (s *Service) IssueRefresh(ctx context.Context, u *model.User) (Issued, error) {
	iss, err := s.issue(u, TypeRefresh, s.refreshTTL)
	if err != nil {
		return Issued{}, err
	}
	if err := s.store.Add(ctx, iss.Token, iss.ExpiresAt); err != nil {
		return Issued{}, fmt.Errorf("register refresh token: %w", err)
	}
	return iss, nil
}

func (s *Service) issue(u *model.User, typ Type, ttl time.Duration) (Issued, error) {
	if u == nil || u.Email == "" || !u.Role.Valid() {
		return Issued{}, errors.New("token: identity must carry email and role")
	}
	jti, err := utils.RandomHex(16)
	if err != nil {
		return Issued{}, err
	}
	now := s.now().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks structure, then signature, then expiry, and returns the
// decoded claims. Failures are errs.ErrTokenMalformed,
// errs.ErrSignatureInvalid or errs.ErrTokenExpired.
func (s *Service) Verify(raw string) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, errs.ErrTokenMalformed
	}
	sig, err := segmentEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, errs.ErrSignatureInvalid
	}
	if err := signingMethod.Verify(parts[0]+"."+parts[1], sig, s.secret); err != nil {
		return nil, errs.ErrSignatureInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	var claims Claims
	_, err = parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return s.secret, nil })
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errs.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, errs.ErrSignatureInvalid
	default:
		return nil, fmt.Errorf("%w: %v", errs.ErrTokenMalformed, err)
	}
}

// ExtractSubject returns the subject (email) of a verified token.
func (s *Service) ExtractSubject(raw string) (string, error) {
	c, err := s.Verify(raw)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// ExtractUserID returns the userId claim of a verified token.
func (s *Service) ExtractUserID(raw string) (uint64, error) {
	c, err := s.Verify(raw)
	if err != nil {
		return 0, err
	}
	return c.UserID, nil
}

// ExtractRole returns the role claim of a verified token.
func (s *Service) ExtractRole(raw string) (model.Role, error) {
	c, err := s.Verify(raw)
	if err != nil {
		return 0, err
	}
	return c.Role, nil
}
