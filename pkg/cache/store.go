package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wldstore/storefront/pkg/metrics"
)

// Store is the process-wide catalog cache. Entries are only ever created by
// a successful fetch and are never removed by age alone.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	hits    uint64
	misses  uint64
	gen     uint64 // bumped by Clear; fetches started before it are not stored

	ttl     time.Duration
	windows Windows
	now     func() time.Time
	metrics metrics.Collector

	dedup bool
	group singleflight.Group
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithTTL sets how long an entry is served without refetching
// Default: 5m
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithWindows sets the fresh/stale classification boundaries
func WithWindows(w Windows) StoreOption {
	return func(s *Store) {
		s.windows = w
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(c metrics.Collector) StoreOption {
	return func(s *Store) {
		s.metrics = c
	}
}

// WithDeduplication controls whether concurrent misses for the same key
// share one fetch
// Default: true
func WithDeduplication(enabled bool) StoreOption {
	return func(s *Store) {
		s.dedup = enabled
	}
}

// NewStore creates an empty store
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]*Entry),
		ttl:     5 * time.Minute,
		windows: DefaultWindows(),
		now:     time.Now,
		metrics: metrics.Nop(),
		dedup:   true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GetOrFetch returns the cached payload for key when it is younger than the
// TTL, otherwise it invokes fetch and stores the result. A failed fetch is
// returned to the caller and leaves any existing entry in place.
func (s *Store) GetOrFetch(ctx context.Context, key string, fetch Fetcher) (any, error) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && entry.Age(s.now()) < s.ttl {
		s.hits++
		s.mu.Unlock()
		s.metrics.RecordCacheLookup(metrics.LookupHit)
		return entry.Payload, nil
	}
	s.misses++
	gen := s.gen
	s.mu.Unlock()
	s.metrics.RecordCacheLookup(metrics.LookupMiss)

	return s.load(ctx, key, gen, fetch)
}

// GetOrFetchAs is the typed form of Store.GetOrFetch
func GetOrFetchAs[T any](ctx context.Context, s *Store, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	v, err := s.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %q holds %T", key, v)
	}
	return t, nil
}

// Refresh fetches and stores key without touching the hit/miss counters
func (s *Store) Refresh(ctx context.Context, key string, fetch Fetcher) error {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	_, err := s.load(ctx, key, gen, fetch)
	return err
}

// load fetches key for generation gen. Shared fetches are keyed by
// generation, so a miss after Clear never joins a fetch started before it.
// The shared fetch is detached from the first caller's cancellation; each
// caller stops waiting when its own ctx is done.
func (s *Store) load(ctx context.Context, key string, gen uint64, fetch Fetcher) (any, error) {
	if !s.dedup {
		return s.fetchAndStore(ctx, key, gen, fetch)
	}

	ch := s.group.DoChan(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		return s.fetchAndStore(context.WithoutCancel(ctx), key, gen, fetch)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchAndStore runs fetch and stores its payload unless the store was
// cleared since generation gen. The payload is returned either way.
func (s *Store) fetchAndStore(ctx context.Context, key string, gen uint64, fetch Fetcher) (any, error) {
	payload, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return payload, nil
	}
	s.entries[key] = &Entry{
		Key:       key,
		Payload:   payload,
		FetchedAt: s.now(),
	}
	n := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetCacheEntries(n)
	return payload, nil
}

// Peek returns the entry for key without fetching or counting
func (s *Store) Peek(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Valid reports whether key holds an entry younger than the TTL
func (s *Store) Valid(key string) bool {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	return ok && entry.Age(now) < s.ttl
}

// Delete removes a single entry
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	n := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetCacheEntries(n)
	return ok
}

// Clear drops every entry and returns how many were removed
func (s *Store) Clear() int {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[string]*Entry)
	s.gen++
	s.mu.Unlock()

	s.metrics.SetCacheEntries(0)
	return n
}

// Len returns the number of cached entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Keys returns the cached keys in sorted order
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// OlderThan returns the sorted keys of entries whose age exceeds d
func (s *Store) OlderThan(d time.Duration) []string {
	now := s.now()

	s.mu.RLock()
	var keys []string
	for k, e := range s.entries {
		if e.Age(now) > d {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Metrics computes the current metrics view
func (s *Store) Metrics() Metrics {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	m := Metrics{
		Hits:          s.hits,
		Misses:        s.misses,
		TotalRequests: s.hits + s.misses,
		HitRate:       hitRate(s.hits, s.misses),
		Entries:       len(s.entries),
		StaleKeys:     []string{},
	}

	for k, e := range s.entries {
		if e.State(now, s.windows) != StateFresh {
			m.StaleKeys = append(m.StaleKeys, k)
		}
		if age := e.Age(now); age > m.OldestAge {
			m.OldestAge = age
		}
	}
	sort.Strings(m.StaleKeys)

	return m
}

// ResetCounters zeroes the hit and miss counters
func (s *Store) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits = 0
	s.misses = 0
}
