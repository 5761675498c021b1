package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, r := range Roles {
		got, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	got, err := ParseRole(" farmer ")
	require.NoError(t, err)
	assert.Equal(t, RoleFarmer, got)

	_, err = ParseRole("OWNER")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleVeterinarian})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"VETERINARIAN"}`, string(b))

	var out struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"ADMIN"}`), &out))
	assert.Equal(t, RoleAdmin, out.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"ROOT"}`), &out))

	_, err = json.Marshal(struct{ R Role }{Role(0)})
	assert.Error(t, err)
}

func TestUserIsActive(t *testing.T) {
	t.Parallel()

	var nilUser *User
	assert.False(t, nilUser.IsActive())
	assert.True(t, (&User{Active: true}).IsActive())
	assert.False(t, (&User{Active: false}).IsActive())
}
