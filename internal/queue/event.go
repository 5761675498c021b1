// Package queue defines identity events exchanged over the message broker,
// the AMQP publisher used by the session manager and the audit consumer.
package queue

import (
	"time"

	"github.com/farmtech/livestock-auth/internal/model"
)

// Queue names double as event kinds.
const (
	KindRegistered = "identity.registered"
	KindLogin      = "identity.login"
)

// Kinds lists every queue the audit consumer subscribes to.
var Kinds = []string{KindRegistered, KindLogin}

// IdentityEvent is published after a registration or a successful login.
// Consumers (farmer profile provisioning, audit) never need to query the
// identity store to act on it.
type IdentityEvent struct {
	Kind       string     `json:"kind"`
	UserID     uint64     `json:"user_id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Role       model.Role `json:"role"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewIdentityEvent stamps an event for u with the current UTC time.
func NewIdentityEvent(kind string, u *model.User) IdentityEvent {
	return IdentityEvent{
		Kind:       kind,
		UserID:     u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		OccurredAt: time.Now().UTC(),
	}
}
