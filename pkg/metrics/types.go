// Package metrics provides monitoring and metrics collection for the storefront core
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup results
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

// Collector defines the interface for metrics collection
type Collector interface {
	// RecordCacheLookup records a GetOrFetch outcome ("hit" or "miss")
	RecordCacheLookup(result string)

	// SetCacheEntries updates the number of cached entries
	SetCacheEntries(n int)

	// ObserveFetch records a catalog fetch against the backend
	ObserveFetch(source string, duration time.Duration, err error)

	// RecordWarm records a completed warming pass
	RecordWarm(duration time.Duration, fetched int)

	// RecordPayment records a payment outcome (e.g. "confirmed", "insufficient_allowance")
	RecordPayment(outcome string)

	// RecordConfirmationPoll records one transaction status poll
	RecordConfirmationPoll(result string)

	// RecordRequest records a completed admin RPC
	RecordRequest(method string, code string, duration time.Duration)

	// RecordError records an admin RPC error
	RecordError(method string, errorType string)

	// RecordActiveRequests updates the active admin RPC gauge
	RecordActiveRequests(method string, delta int)

	// GetRegistry returns the prometheus registry
	GetRegistry() *prometheus.Registry
}

// Config holds configuration for metrics collection
type Config struct {
	// Namespace for metrics (e.g., "storefront")
	Namespace string

	// Custom histogram buckets (in seconds)
	HistogramBuckets []float64

	// Enable per-method admin RPC metrics
	EnablePerMethodMetrics bool

	// Constant labels to add to all metrics
	ConstLabels map[string]string
}

// DefaultConfig returns the default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace:              "storefront",
		EnablePerMethodMetrics: true,
		HistogramBuckets: []float64{
			0.005, // 5ms
			0.01,  // 10ms
			0.05,  // 50ms
			0.1,   // 100ms
			0.25,  // 250ms
			0.5,   // 500ms
			1.0,   // 1s
			2.5,   // 2.5s
			5.0,   // 5s
			10.0,  // 10s
		},
		ConstLabels: make(map[string]string),
	}
}

// ConfigOption is a function that configures a Config
type ConfigOption func(*Config)

// WithNamespace sets the namespace for metrics
func WithNamespace(namespace string) ConfigOption {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithHistogramBuckets sets custom histogram buckets
func WithHistogramBuckets(buckets []float64) ConfigOption {
	return func(c *Config) {
		c.HistogramBuckets = buckets
	}
}

// WithConstLabels sets constant labels for all metrics
func WithConstLabels(labels map[string]string) ConfigOption {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithoutPerMethodMetrics disables per-method admin RPC metrics
func WithoutPerMethodMetrics() ConfigOption {
	return func(c *Config) {
		c.EnablePerMethodMetrics = false
	}
}

// nopCollector discards everything.
type nopCollector struct{}

// Nop returns a Collector that records nothing.
func Nop() Collector { return nopCollector{} }

func (nopCollector) RecordCacheLookup(string) {}
func (nopCollector) SetCacheEntries(int) {}
func (nopCollector) ObserveFetch(string, time.Duration, error) {}
func (nopCollector) RecordWarm(time.Duration, int) {}
func (nopCollector) RecordPayment(string) {}
func (nopCollector) RecordConfirmationPoll(string) {}
func (nopCollector) RecordRequest(string, string, time.Duration) {}
func (nopCollector) RecordError(string, string) {}
func (nopCollector) RecordActiveRequests(string, int) {}
func (nopCollector) GetRegistry() *prometheus.Registry { return nil }
