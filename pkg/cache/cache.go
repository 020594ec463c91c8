// Package cache provides the in-process TTL cache for catalog data and the
// manager that keeps it warm
package cache

import (
	"context"
	"time"
)

// State classifies an entry by age
type State int

const (
	StateFresh   State = iota // younger than the fresh window
	StateStale                // younger than the stale window
	StateExpired              // at or beyond the stale window
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Windows holds the age boundaries used to classify entries
type Windows struct {
	Fresh time.Duration // entries younger than this are fresh
	Stale time.Duration // entries younger than this (and not fresh) are stale
}

// DefaultWindows returns the classification boundaries used by the sweep
func DefaultWindows() Windows {
	return Windows{
		Fresh: 2 * time.Minute,
		Stale: 4 * time.Minute,
	}
}

// Fetcher loads the payload for a key from the backend
type Fetcher func(ctx context.Context) (any, error)

// Entry is a successfully fetched payload
type Entry struct {
	Key       string    // collection slug, "featured", product id...
	Payload   any       // product list or single product
	FetchedAt time.Time // time of the last successful fetch
}

// Age returns how long ago the entry was fetched
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// State classifies the entry relative to w
func (e Entry) State(now time.Time, w Windows) State {
	age := e.Age(now)
	switch {
	case age < w.Fresh:
		return StateFresh
	case age < w.Stale:
		return StateStale
	default:
		return StateExpired
	}
}

// Metrics is a point-in-time view computed from the store
type Metrics struct {
	Hits          uint64        // GetOrFetch calls served from cache
	Misses        uint64        // GetOrFetch calls that invoked the fetcher
	TotalRequests uint64        // Hits + Misses
	HitRate       float64       // Hits / TotalRequests, 0 when no requests
	Entries       int           // number of cached entries
	StaleKeys     []string      // sorted keys that are no longer fresh
	OldestAge     time.Duration // age of the oldest entry, 0 when empty
}

// hitRate returns hits/(hits+misses), or 0 when there were no requests
func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
