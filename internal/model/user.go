package model

import "time"

// User represents an identity record as stored in the `users` table. Each
// field corresponds to a column. Optional profile columns use empty strings
// for NULL; the repository converts at the boundary.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name, 3–50 characters.
//	Email        – unique, normalized to lower case.
//	PasswordHash – bcrypt hash, never the plaintext.
//	Role         – single granted role.
//	Active       – accounts with Active=false cannot authenticate.
//	LastLoginAt  – set on every successful login (nullable).
//	DeletedAt    – soft-delete marker (nullable).
type User struct {
	ID           uint64     // users.id
	Username     string     // users.username
	Email        string     // users.email
	PasswordHash string     // users.password_hash
	FirstName    string     // users.first_name (nullable)
	LastName     string     // users.last_name (nullable)
	Phone        string     // users.phone_number (nullable)
	Role         Role       // users.role
	Active       bool       // users.is_active
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
	LastLoginAt  *time.Time // users.last_login_date (nullable)
	DeletedAt    *time.Time // users.deleted_at (nullable)
}

// IsActive reports whether the identity may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.Active && u.DeletedAt == nil
}

// UserSummary is the public projection returned alongside issued tokens.
type UserSummary struct {
	ID       uint64 `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Summary projects u for API responses.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}
