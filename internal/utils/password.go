package utils

import (
	"context"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher wraps bcrypt behind a weighted semaphore so bursts of logins or
// registrations occupy at most `limit` workers at a time.
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

// NewHasher returns a Hasher using the given bcrypt cost. A limit <= 0 uses
// GOMAXPROCS.
func NewHasher(cost, limit int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	h := &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(limit))}
	// Compared against when no identity matched so unknown emails cost the
	// same as wrong passwords.
	h.dummy, _ = bcrypt.GenerateFromPassword([]byte("livestock-auth-dummy"), cost)
	return h
}

// HashPassword returns bcrypt hash of plain.
func (h *Hasher) HashPassword(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password. An empty
// hash is compared against a dummy so the call still takes bcrypt time.
func (h *Hasher) VerifyPassword(ctx context.Context, hash, plain string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
