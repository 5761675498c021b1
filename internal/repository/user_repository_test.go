package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/farmtech/livestock-auth/internal/model"
)

func newRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepo(db), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "first_name", "last_name",
		"phone_number", "role", "is_active", "created_at", "updated_at", "last_login_date", "deleted_at"})
}

func TestUserRepo_Create(t *testing.T) {
	r, mock := newRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &model.User{
		Username:     "alice",
		Email:        " Alice@X.com ",
		PasswordHash: "h",
		FirstName:    "Alice",
		Role:         model.RoleFarmer,
		Active:       true,
		CreatedAt:    now,
	}

	mock.ExpectExec(regexp.QuoteMeta(qInsertUser)).
		WithArgs("alice", "alice@x.com", "h",
			sql.NullString{String: "Alice", Valid: true}, sql.NullString{}, sql.NullString{},
			"FARMER", true, now, now).
		WillReturnResult(sqlmock.NewResult(42, 1))
	id, err := r.Create(ctx, u)
	require.NoError(t, err)
	require.Equal(t, uint64(42), id)

	mock.ExpectExec(regexp.QuoteMeta(qInsertUser)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	_, err = r.Create(ctx, u)
	require.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmail(t *testing.T) {
	r, mock := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(qUserByEmail)).
		WithArgs("alice@x.com").
		WillReturnRows(userRows().AddRow(7, "alice", "alice@x.com", "h", "Alice", nil, nil,
			"VETERINARIAN", true, now, now, now, nil))
	u, err := r.GetByEmail(ctx, "ALICE@x.com")
	require.NoError(t, err)
	require.Equal(t, uint64(7), u.ID)
	require.Equal(t, model.RoleVeterinarian, u.Role)
	require.Equal(t, "Alice", u.FirstName)
	require.Empty(t, u.LastName)
	require.NotNil(t, u.LastLoginAt)
	require.Nil(t, u.DeletedAt)

	mock.ExpectQuery(regexp.QuoteMeta(qUserByEmail)).
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)
	_, err = r.GetByEmail(ctx, "nobody@x.com")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_UnknownRole(t *testing.T) {
	r, mock := newRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(qUserByID)).
		WithArgs(uint64(3)).
		WillReturnRows(userRows().AddRow(3, "bob", "bob@x.com", "h", nil, nil, nil,
			"OWNER", true, now, now, nil, nil))
	_, err := r.GetByID(context.Background(), 3)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_GetByUsername_SoftDeleted(t *testing.T) {
	r, mock := newRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(qUserByUsername)).
		WithArgs("bob").
		WillReturnRows(userRows().AddRow(3, "bob", "bob@x.com", "h", nil, nil, nil,
			"BUYER", false, now, now, nil, now))
	u, err := r.GetByUsername(context.Background(), " bob ")
	require.NoError(t, err)
	require.NotNil(t, u.DeletedAt)
	require.False(t, u.IsActive())
}

func TestUserRepo_Exists(t *testing.T) {
	r, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(qExistsUsername)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(true))
	ok, err := r.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta(qExistsEmail)).
		WithArgs("alice@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(false))
	ok, err = r.ExistsByEmail(ctx, "Alice@X.com")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUserRepo_SoftDeleteAndCount(t *testing.T) {
	r, mock := newRepo(t)
	ctx := context.Background()
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(qSoftDelete)).
		WithArgs(at, at, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.SoftDelete(ctx, 5, at))

	mock.ExpectExec(regexp.QuoteMeta(qSoftDelete)).
		WithArgs(at, at, uint64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, r.SoftDelete(ctx, 6, at), ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta(qTouchLogin)).
		WithArgs(at, at, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.TouchLastLogin(ctx, 5, at))

	mock.ExpectQuery(regexp.QuoteMeta(qCountUsers)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(12))
	n, err := r.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(12), n)

	require.NoError(t, mock.ExpectationsWereMet())
}
