// Package orderguard makes backend order creation happen at most once per
// order id, even across processes when backed by Redis.
package orderguard

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a reservation is remembered
const DefaultTTL = 24 * time.Hour

// Store reserves order ids
type Store interface {
	// Reserve claims orderID for ttl. It returns false if the id is
	// already claimed.
	Reserve(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu       sync.Mutex
	reserved map[string]time.Time
	now      func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reserved: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Reserve claims orderID. Expired claims are dropped when the same id is
// reserved again.
func (s *MemoryStore) Reserve(_ context.Context, orderID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.reserved[orderID]; ok && now.Before(expires) {
		return false, nil
	}
	s.reserved[orderID] = now.Add(ttl)
	return true, nil
}

// RedisStore is a Store shared by every process using the same Redis
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store keyed under "order:" in client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "order:",
	}
}

// Reserve claims orderID with SET NX
func (s *RedisStore) Reserve(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return s.client.SetNX(ctx, s.prefix+orderID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
