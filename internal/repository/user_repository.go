package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farmtech/livestock-auth/internal/model"
)

// UserRepository is the persisted-identity store behind the directory and
// the session manager.
type UserRepository interface {
	// Create inserts u and returns its new ID.
	Create(ctx context.Context, u *model.User) (uint64, error)
	// GetByID, GetByEmail and GetByUsername return ErrNotFound on no row.
	// Soft-deleted and inactive rows are returned as-is.
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// TouchLastLogin records a successful login.
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
	// SoftDelete marks the row deleted and inactive.
	SoftDelete(ctx context.Context, id uint64, at time.Time) error
	// Count returns the number of non-deleted identities.
	Count(ctx context.Context) (int64, error)
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,email,password_hash,first_name,last_name,phone_number,role,is_active,created_at,updated_at,last_login_date,deleted_at"

const (
	qInsertUser     = "INSERT INTO users (username,email,password_hash,first_name,last_name,phone_number,role,is_active,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)"
	qUserByID       = "SELECT " + userColumns + " FROM users WHERE id=? LIMIT 1"
	qUserByEmail    = "SELECT " + userColumns + " FROM users WHERE email=? LIMIT 1"
	qUserByUsername = "SELECT " + userColumns + " FROM users WHERE username=? LIMIT 1"
	qExistsUsername = "SELECT EXISTS(SELECT 1 FROM users WHERE username=?)"
	qExistsEmail    = "SELECT EXISTS(SELECT 1 FROM users WHERE email=?)"
	qTouchLogin     = "UPDATE users SET last_login_date=?, updated_at=? WHERE id=?"
	qSoftDelete     = "UPDATE users SET deleted_at=?, is_active=0, updated_at=? WHERE id=? AND deleted_at IS NULL"
	qCountUsers     = "SELECT COUNT(*) FROM users WHERE deleted_at IS NULL"
)

// Create inserts user and returns its ID. Email is normalized here as well
// so no caller can bypass it.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	now := u.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx, qInsertUser,
		u.Username, email, u.PasswordHash,
		nullString(u.FirstName), nullString(u.LastName), nullString(u.Phone),
		u.Role.String(), u.Active, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx, qUserByID, id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx, qUserByEmail, email))
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx, qUserByUsername, strings.TrimSpace(username)))
}

func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx, qExistsUsername, username).Scan(&ok)
	return ok, err
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx, qExistsEmail, strings.ToLower(email)).Scan(&ok)
	return ok, err
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, qTouchLogin, at, at, id)
	return err
}

func (r *UserRepo) SoftDelete(ctx context.Context, id uint64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, qSoftDelete, at, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, qCountUsers).Scan(&n)
	return n, err
}

func (r *UserRepo) scanOne(row *sql.Row) (*model.User, error) {
	var (
		u                           model.User
		first, last, phone, roleStr sql.NullString
		lastLogin, deleted          sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&first, &last, &phone, &roleStr, &u.Active,
		&u.CreatedAt, &u.UpdatedAt, &lastLogin, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	role, err := model.ParseRole(roleStr.String)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Role = role
	u.FirstName, u.LastName, u.Phone = first.String, last.String, phone.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	if deleted.Valid {
		t := deleted.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

var _ UserRepository = (*UserRepo)(nil)
