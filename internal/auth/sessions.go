package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations remembers logged-out session ids until they would have expired anyway.
type Revocations interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	Revoked(ctx context.Context, id string) (bool, error)
}

// RedisRevocations stores revoked ids as expiring keys.
type RedisRevocations struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocations creates a Redis-backed revocation list.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, prefix: "session:revoked:"}
}

// Revoke marks id as revoked.
func (r *RedisRevocations) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.prefix+id, 1, ttl).Err()
}

// Revoked reports whether id was revoked.
func (r *RedisRevocations) Revoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocations is the single-process revocation list.
type MemoryRevocations struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

// NewMemoryRevocations creates an empty in-memory revocation list.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{ids: make(map[string]time.Time), now: time.Now}
}

// Revoke marks id as revoked.
func (m *MemoryRevocations) Revoke(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.ids {
		if !exp.After(now) {
			delete(m.ids, k)
		}
	}
	if until.After(now) {
		m.ids[id] = until
	}
	return nil
}

// Revoked reports whether id was revoked.
func (m *MemoryRevocations) Revoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.ids[id]
	return ok && exp.After(m.now()), nil
}
