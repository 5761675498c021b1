// Package service contains the identity directory and the session lifecycle
// (register, login, refresh, logout) built on top of it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/farmtech/livestock-auth/internal/errs"
	"github.com/farmtech/livestock-auth/internal/model"
	"github.com/farmtech/livestock-auth/internal/queue"
	"github.com/farmtech/livestock-auth/internal/repository"
	"github.com/farmtech/livestock-auth/internal/telemetry"
	"github.com/farmtech/livestock-auth/internal/token"
	"github.com/farmtech/livestock-auth/internal/utils"
)

// Field limits enforced by Register.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 50
	MinPasswordLen = 6
)

// DefaultTimeout bounds every store round trip of one operation.
const DefaultTimeout = 5 * time.Second

// SessionService defines the lifecycle operations exposed to handlers.
type SessionService interface {
	// Register validates and persists a new active identity and returns a
	// fresh token pair.
	Register(ctx context.Context, in RegisterInput) (AuthResult, error)
	// Login authenticates by email and password. Every failure past input
	// validation is errs.ErrAuthenticationFailed.
	Login(ctx context.Context, email, password string) (AuthResult, error)
	// Refresh rotates a registered refresh token into a new pair.
	Refresh(ctx context.Context, refreshToken string) (AuthResult, error)
	// Logout revokes a refresh token. Revoking an unknown token succeeds.
	Logout(ctx context.Context, refreshToken string) error
	UserIDFromAccessToken(raw string) (uint64, error)
	UserIDByEmail(ctx context.Context, email string) (uint64, error)
	UserCount(ctx context.Context) (int64, error)
	Deactivate(ctx context.Context, id uint64) error
}

// EventPublisher receives identity events. Failures never fail the
// operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.IdentityEvent) error
}

// RegisterInput is a registration candidate. Optional profile fields may be
// empty.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phoneNumber"`
}

// AuthResult is returned by Register, Login and Refresh.
type AuthResult struct {
	model.UserSummary
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// SessionManager implements SessionService.
type SessionManager struct {
	users   repository.UserRepository
	dir     *Directory
	tokens  *token.Service
	store   repository.TokenStore
	hasher  *utils.Hasher
	events  EventPublisher
	metrics *telemetry.Metrics
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// Option customizes a SessionManager.
type Option func(*SessionManager)

func WithEvents(p EventPublisher) Option      { return func(s *SessionManager) { s.events = p } }
func WithMetrics(m *telemetry.Metrics) Option { return func(s *SessionManager) { s.metrics = m } }
func WithLogger(l *zap.Logger) Option         { return func(s *SessionManager) { s.log = l } }
func WithTimeout(d time.Duration) Option      { return func(s *SessionManager) { s.timeout = d } }
func WithClock(now func() time.Time) Option   { return func(s *SessionManager) { s.now = now } }
func WithDirectory(d *Directory) Option       { return func(s *SessionManager) { s.dir = d } }

// NewSessionManager wires the lifecycle over its collaborators. The token
// store must be the same one the token service registers refresh tokens in.
func NewSessionManager(users repository.UserRepository, tokens *token.Service, store repository.TokenStore, hasher *utils.Hasher, opts ...Option) *SessionManager {
	s := &SessionManager{
		users:   users,
		tokens:  tokens,
		store:   store,
		hasher:  hasher,
		events:  queue.Discard{},
		log:     zap.NewNop(),
		timeout: DefaultTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	if s.dir == nil {
		s.dir = NewDirectory(users)
	}
	return s
}

// Directory exposes the identity directory the manager resolves through.
func (s *SessionManager) Directory() *Directory { return s.dir }

func (s *SessionManager) Register(ctx context.Context, in RegisterInput) (res AuthResult, err error) {
	defer func() { s.metrics.RecordSession(ctx, "register", err) }()

	role, err := validateRegistration(&in)
	if err != nil {
		return AuthResult{}, err
	}
	u, err := s.create(ctx, in, role)
	if err != nil {
		return AuthResult{}, err
	}
	s.publish(ctx, queue.KindRegistered, u)
	return s.issuePair(ctx, u)
}

// CreateAdmin persists an ADMIN identity regardless of in.Role. Used by the
// bootstrap command; no tokens are issued.
func (s *SessionManager) CreateAdmin(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Role = model.RoleAdmin.String()
	if _, err := validateRegistration(&in); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, in, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.log.Info("admin identity created", zap.Uint64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// validateRegistration trims in, lowercases the email and checks every
// field in order, returning the parsed role.
func validateRegistration(in *RegisterInput) (model.Role, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.TrimSpace(in.Role)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)

	switch n := len([]rune(in.Username)); {
	case n == 0:
		return 0, errs.Validation("username", "Username is required")
	case n < MinUsernameLen || n > MaxUsernameLen:
		return 0, errs.Validation("username", fmt.Sprintf("Username must be between %d and %d characters", MinUsernameLen, MaxUsernameLen))
	}
	if in.Email == "" {
		return 0, errs.Validation("email", "Email is required")
	}
	if !strings.Contains(in.Email, "@") {
		return 0, errs.Validation("email", "Email should be valid")
	}
	if strings.TrimSpace(in.Password) == "" {
		return 0, errs.Validation("password", "Password is required")
	}
	if len([]rune(in.Password)) < MinPasswordLen {
		return 0, errs.Validation("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLen))
	}
	if in.Role == "" {
		return 0, errs.Validation("role", "Role is required")
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return 0, errs.Validation("role", "Role must be one of FARMER, BUYER, VETERINARIAN, ADMIN")
	}
	return role, nil
}

func (s *SessionManager) create(ctx context.Context, in RegisterInput, role model.Role) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	taken, err := s.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, &errs.DuplicateError{Field: "username"}
	}
	taken, err = s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, &errs.DuplicateError{Field: "email"}
	}

	start := time.Now()
	hash, err := s.hasher.HashPassword(ctx, in.Password)
	s.metrics.RecordHash(ctx, "hash", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost a race against a concurrent registration
			return nil, &errs.DuplicateError{}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return u, nil
}

func (s *SessionManager) Login(ctx context.Context, email, password string) (res AuthResult, err error) {
	defer func() { s.metrics.RecordSession(ctx, "login", err) }()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return AuthResult{}, errs.Validation("email", "Email is required")
	}
	if password == "" {
		return AuthResult{}, errs.Validation("password", "Password is required")
	}

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, lookupErr := s.dir.LoadActiveByEmail(lctx, email)
	hash := ""
	if lookupErr == nil {
		hash = u.PasswordHash
	} else if !errors.Is(lookupErr, errs.ErrNoActiveIdentity) {
		s.log.Error("login lookup failed", zap.Error(lookupErr))
	}
	start := time.Now()
	ok := s.hasher.VerifyPassword(lctx, hash, password)
	s.metrics.RecordHash(ctx, "verify", time.Since(start))
	if lookupErr != nil || !ok {
		return AuthResult{}, errs.ErrAuthenticationFailed
	}

	now := s.now()
	if err := s.users.TouchLastLogin(lctx, u.ID, now); err != nil {
		return AuthResult{}, fmt.Errorf("record login: %w", err)
	}
	u.LastLoginAt = &now

	res, err = s.issuePair(lctx, u)
	if err != nil {
		return AuthResult{}, err
	}
	s.publish(ctx, queue.KindLogin, u)
	return res, nil
}

func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (res AuthResult, err error) {
	defer func() { s.metrics.RecordSession(ctx, "refresh", err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResult{}, errs.Validation("refreshToken", "Refresh token is required")
	}
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %w", errs.ErrInvalidRefreshToken, err)
	}
	if claims.TokenType != token.TypeRefresh {
		return AuthResult{}, fmt.Errorf("%w: token type %q", errs.ErrInvalidRefreshToken, claims.TokenType)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	known, err := s.store.Contains(ctx, refreshToken)
	if err != nil {
		return AuthResult{}, fmt.Errorf("check refresh token: %w", err)
	}
	if !known {
		return AuthResult{}, errs.ErrTokenRevokedOrUnknown
	}

	u, err := s.dir.LoadActiveByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNoActiveIdentity) {
			return AuthResult{}, errs.NoActiveIdentity(errs.ErrIdentityInactive)
		}
		return AuthResult{}, err
	}
	if !strings.EqualFold(u.Email, claims.Subject) {
		return AuthResult{}, fmt.Errorf("%w: subject no longer matches identity", errs.ErrInvalidRefreshToken)
	}

	removed, err := s.store.Remove(ctx, refreshToken)
	if err != nil {
		return AuthResult{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !removed {
		// a concurrent refresh or logout consumed it first
		return AuthResult{}, errs.ErrTokenRevokedOrUnknown
	}
	return s.issuePair(ctx, u)
}

func (s *SessionManager) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { s.metrics.RecordSession(ctx, "logout", err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return errs.Validation("refreshToken", "Refresh token is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.Remove(ctx, refreshToken); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// UserIDFromAccessToken returns the acting identity of an access token
// without consulting the store.
func (s *SessionManager) UserIDFromAccessToken(raw string) (uint64, error) {
	return s.tokens.ExtractUserID(raw)
}

func (s *SessionManager) UserIDByEmail(ctx context.Context, email string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.dir.LoadActiveByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func (s *SessionManager) UserCount(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.users.Count(ctx)
}

// Deactivate soft-deletes the identity. Its outstanding refresh tokens stop
// working at their next use because the identity is no longer active.
func (s *SessionManager) Deactivate(ctx context.Context, id uint64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.users.SoftDelete(ctx, id, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errs.NoActiveIdentity(errs.ErrIdentityNotFound)
		}
		return err
	}
	s.log.Info("identity deactivated", zap.Uint64("user_id", id))
	return nil
}

func (s *SessionManager) issuePair(ctx context.Context, u *model.User) (AuthResult, error) {
	access, err := s.tokens.IssueAccess(u)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(ctx, u)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return AuthResult{
		UserSummary:      u.Summary(),
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		TokenType:        "Bearer",
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (s *SessionManager) publish(ctx context.Context, kind string, u *model.User) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, queue.NewIdentityEvent(kind, u)); err != nil {
		s.log.Warn("identity event not published", zap.String("kind", kind), zap.Uint64("user_id", u.ID), zap.Error(err))
	}
}

var _ SessionService = (*SessionManager)(nil)
