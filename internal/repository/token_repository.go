package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/farmtech/livestock-auth/internal/utils"
)

// TokenStore is the revocation registry: the set of refresh tokens that are
// currently honourable. Membership is validity. Implementations must be
// safe for concurrent use without external locking.
type TokenStore interface {
	// Add registers a freshly issued refresh token until expiresAt.
	Add(ctx context.Context, raw string, expiresAt time.Time) error
	// Remove deletes raw and reports whether it was present. Removing an
	// absent token is not an error.
	Remove(ctx context.Context, raw string) (bool, error)
	// Contains reports whether raw is currently registered.
	Contains(ctx context.Context, raw string) (bool, error)
}

// MemoryTokenStore keeps token digests in process memory. A restart
// invalidates every outstanding refresh token.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	hashes map[string]struct{}
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{hashes: make(map[string]struct{})}
}

// Add stores the digest of raw. Expiry is enforced by token verification,
// so entries are not swept.
func (s *MemoryTokenStore) Add(_ context.Context, raw string, _ time.Time) error {
	h := utils.HashToken(raw)
	s.mu.Lock()
	s.hashes[h] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Remove(_ context.Context, raw string) (bool, error) {
	h := utils.HashToken(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[h]; !ok {
		return false, nil
	}
	delete(s.hashes, h)
	return true, nil
}

func (s *MemoryTokenStore) Contains(_ context.Context, raw string) (bool, error) {
	h := utils.HashToken(raw)
	s.mu.RLock()
	_, ok := s.hashes[h]
	s.mu.RUnlock()
	return ok, nil
}

// Len returns the number of registered tokens.
func (s *MemoryTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hashes)
}

// RedisTokenStore persists token digests in Redis with a TTL matching the
// token expiry, so registrations survive restarts and are shared across
// replicas.
type RedisTokenStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisTokenStore builds a store whose keys look like "<prefix>:<sha256>".
func NewRedisTokenStore(rdb redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "refresh"
	}
	return &RedisTokenStore{rdb: rdb, prefix: prefix}
}

func (s *RedisTokenStore) key(raw string) string {
	return s.prefix + ":" + utils.HashToken(raw)
}

func (s *RedisTokenStore) Add(ctx context.Context, raw string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired; verification would reject it anyway.
		return nil
	}
	return s.rdb.Set(ctx, s.key(raw), 1, ttl).Err()
}

func (s *RedisTokenStore) Remove(ctx context.Context, raw string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.key(raw)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisTokenStore) Contains(ctx context.Context, raw string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(raw)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var (
	_ TokenStore = (*MemoryTokenStore)(nil)
	_ TokenStore = (*RedisTokenStore)(nil)
)
