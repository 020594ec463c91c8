package cache

import (
	"fmt"
	"time"
)

const (
	lowHitRate       = 0.5
	maxStaleKeys     = 3
	maxOldestAge     = 10 * time.Minute
	minSampleRequest = 10
)

// Recommendations derives advisory hints from a metrics view. Nothing in the
// cache acts on them.
func Recommendations(m Metrics) []string {
	var out []string

	if m.TotalRequests > 0 && m.HitRate < lowHitRate {
		out = append(out, fmt.Sprintf("hit rate is %.0f%%; consider warming more collections or raising the TTL", m.HitRate*100))
	}
	if n := len(m.StaleKeys); n > maxStaleKeys {
		out = append(out, fmt.Sprintf("%d entries are stale; consider a shorter sweep interval", n))
	}
	if m.OldestAge > maxOldestAge {
		out = append(out, fmt.Sprintf("oldest entry is %s old; the sweep may not be running", m.OldestAge.Round(time.Second)))
	}
	if m.TotalRequests < minSampleRequest {
		out = append(out, fmt.Sprintf("only %d requests recorded; metrics are not yet meaningful", m.TotalRequests))
	}

	return out
}

// Recommendations returns hints for the current metrics view
func (m *Manager) Recommendations() []string {
	return Recommendations(m.Metrics())
}
