package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of authorization classes an identity can hold.
// The zero value is not a valid role.
type Role uint8

const (
	RoleFarmer Role = iota + 1
	RoleBuyer
	RoleVeterinarian
	RoleAdmin
)

// Roles lists every valid role in declaration order.
var Roles = []Role{RoleFarmer, RoleBuyer, RoleVeterinarian, RoleAdmin}

func (r Role) String() string {
	switch r {
	case RoleFarmer:
		return "FARMER"
	case RoleBuyer:
		return "BUYER"
	case RoleVeterinarian:
		return "VETERINARIAN"
	case RoleAdmin:
		return "ADMIN"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleFarmer && r <= RoleAdmin
}

// ParseRole converts the wire name (case-insensitive) into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FARMER":
		return RoleFarmer, nil
	case "BUYER":
		return RoleBuyer, nil
	case "VETERINARIAN":
		return RoleVeterinarian, nil
	case "ADMIN":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
