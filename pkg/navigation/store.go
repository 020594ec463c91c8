// Package navigation caches per-route scroll positions and component state
// so a returning visitor lands where they left off.
package navigation

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	// DefaultStateTimeout bounds how long navigation state is restored
	DefaultStateTimeout = 10 * time.Minute
	// DefaultScrollTimeout bounds how long a scroll-only position is restored
	DefaultScrollTimeout = 5 * time.Minute
)

// Snapshot is the saved position of one route path
type Snapshot struct {
	Path      string
	Timestamp time.Time
	ScrollX   int
	ScrollY   int
	State     []byte // opaque component state, may be nil
}

// Store holds at most one snapshot per path. Snapshots older than the
// timeout are treated as absent and removed when read.
type Store struct {
	items   *ttlcache.Cache[string, Snapshot]
	timeout time.Duration
	now     func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithTimeout sets the snapshot lifetime
func WithTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides time.Now for age checks
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store with the navigation state timeout unless
// overridden
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		timeout: DefaultStateTimeout,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	// expiry is checked on read, never by a background loop
	s.items = ttlcache.New[string, Snapshot](
		ttlcache.WithTTL[string, Snapshot](s.timeout),
		ttlcache.WithDisableTouchOnHit[string, Snapshot](),
	)
	return s
}

// Timeout returns the snapshot lifetime
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Save writes snap, replacing any snapshot of the same path. A zero
// timestamp is set to the current time.
func (s *Store) Save(snap Snapshot) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = s.now()
	}
	s.items.Set(snap.Path, snap, ttlcache.DefaultTTL)
}

// Load returns the snapshot of path if one exists and has not expired
func (s *Store) Load(path string) (Snapshot, bool) {
	item := s.items.Get(path)
	if item == nil {
		s.items.Delete(path)
		return Snapshot{}, false
	}

	snap := item.Value()
	if s.now().Sub(snap.Timestamp) >= s.timeout {
		s.items.Delete(path)
		return Snapshot{}, false
	}
	return snap, true
}

// Delete removes the snapshot of path
func (s *Store) Delete(path string) {
	s.items.Delete(path)
}

// Clear removes every snapshot and returns how many were held
func (s *Store) Clear() int {
	n := s.items.Len()
	s.items.DeleteAll()
	return n
}

// Len returns the number of held snapshots, expired ones included until
// they are read
func (s *Store) Len() int {
	return s.items.Len()
}
