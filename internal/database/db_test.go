package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmtech/livestock-auth/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.Config{DBUser: "farm", DBPass: "pw", DBHost: "db", DBPort: "3306", DBName: "livestock"}
	assert.Equal(t, "farm:pw@tcp(db:3306)/livestock?charset=utf8mb4&parseTime=true&loc=UTC", DSN(cfg))

	cfg.DBPass = ""
	assert.Equal(t, "farm@tcp(db:3306)/livestock?charset=utf8mb4&parseTime=true&loc=UTC", DSN(cfg))
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	body, err := fs.ReadFile(migrations, files[0])
	require.NoError(t, err)
	sql := string(body)
	assert.True(t, strings.HasPrefix(sql, "-- +goose Up"))
	assert.Contains(t, sql, "-- +goose Down")
	for _, col := range []string{"username", "email", "password_hash", "role", "is_active", "last_login_date", "deleted_at"} {
		assert.Contains(t, sql, col)
	}
}
