package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector for Prometheus
type PrometheusCollector struct {
	config   *Config
	registry *prometheus.Registry

	// Cache metrics
	cacheLookups  *prometheus.CounterVec
	cacheEntries  prometheus.Gauge
	fetchDuration *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec
	warmPasses    prometheus.Counter
	warmDuration  prometheus.Histogram
	warmFetched   prometheus.Counter

	// Payment metrics
	payments         *prometheus.CounterVec
	confirmationPoll *prometheus.CounterVec

	// Admin RPC metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  *prometheus.GaugeVec
	errorsTotal     *prometheus.CounterVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector
func NewPrometheusCollector(opts ...ConfigOption) (*PrometheusCollector, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	collector := &PrometheusCollector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	if err := collector.initMetrics(); err != nil {
		return nil, err
	}

	return collector, nil
}

func (p *PrometheusCollector) initMetrics() error {
	ns := p.config.Namespace
	constLabels := p.config.ConstLabels

	p.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "cache",
			Name:        "lookups_total",
			Help:        "Cache lookups by result (hit or miss)",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	p.cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Subsystem:   "cache",
		Name:        "entries",
		Help:        "Number of catalog entries currently cached",
		ConstLabels: constLabels,
	})

	p.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   "cache",
			Name:        "fetch_duration_seconds",
			Help:        "Histogram of catalog fetch duration in seconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: constLabels,
		},
		[]string{"source"},
	)

	p.fetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "cache",
			Name:        "fetch_errors_total",
			Help:        "Catalog fetches that failed",
			ConstLabels: constLabels,
		},
		[]string{"source"},
	)

	p.warmPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "cache",
		Name:        "warm_passes_total",
		Help:        "Completed cache warming passes",
		ConstLabels: constLabels,
	})

	p.warmDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Subsystem:   "cache",
		Name:        "warm_duration_seconds",
		Help:        "Histogram of warming pass duration in seconds",
		Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	p.warmFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "cache",
		Name:        "warm_fetched_total",
		Help:        "Entries stored by warming passes",
		ConstLabels: constLabels,
	})

	p.payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "payment",
			Name:        "outcomes_total",
			Help:        "Payment attempts by outcome",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)

	p.confirmationPoll = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "payment",
			Name:        "confirmation_polls_total",
			Help:        "Transaction status polls by result",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	labels := []string{"method", "code"}
	gaugeLabels := []string{"method"}
	errorLabels := []string{"method", "error_type"}
	if !p.config.EnablePerMethodMetrics {
		labels = []string{"code"}
		gaugeLabels = []string{}
		errorLabels = []string{"error_type"}
	}

	p.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "admin",
			Name:        "requests_total",
			Help:        "Total number of admin RPCs handled",
			ConstLabels: constLabels,
		},
		labels,
	)

	p.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   "admin",
			Name:        "request_duration_seconds",
			Help:        "Histogram of admin RPC duration in seconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: constLabels,
		},
		labels,
	)

	p.activeRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "admin",
			Name:        "active_requests",
			Help:        "Number of active admin RPCs",
			ConstLabels: constLabels,
		},
		gaugeLabels,
	)

	p.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "admin",
			Name:        "errors_total",
			Help:        "Total number of admin RPC errors",
			ConstLabels: constLabels,
		},
		errorLabels,
	)

	p.registry.MustRegister(
		p.cacheLookups,
		p.cacheEntries,
		p.fetchDuration,
		p.fetchErrors,
		p.warmPasses,
		p.warmDuration,
		p.warmFetched,
		p.payments,
		p.confirmationPoll,
		p.requestsTotal,
		p.requestDuration,
		p.activeRequests,
		p.errorsTotal,
	)

	return nil
}

// RecordCacheLookup records a cache hit or miss
func (p *PrometheusCollector) RecordCacheLookup(result string) {
	p.cacheLookups.WithLabelValues(result).Inc()
}

// SetCacheEntries updates the cached entries gauge
func (p *PrometheusCollector) SetCacheEntries(n int) {
	p.cacheEntries.Set(float64(n))
}

// ObserveFetch records the duration of a catalog fetch
func (p *PrometheusCollector) ObserveFetch(source string, duration time.Duration, err error) {
	p.fetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		p.fetchErrors.WithLabelValues(source).Inc()
	}
}

// RecordWarm records a completed warming pass
func (p *PrometheusCollector) RecordWarm(duration time.Duration, fetched int) {
	p.warmPasses.Inc()
	p.warmDuration.Observe(duration.Seconds())
	p.warmFetched.Add(float64(fetched))
}

// RecordPayment records a payment outcome
func (p *PrometheusCollector) RecordPayment(outcome string) {
	p.payments.WithLabelValues(outcome).Inc()
}

// RecordConfirmationPoll records a transaction status poll
func (p *PrometheusCollector) RecordConfirmationPoll(result string) {
	p.confirmationPoll.WithLabelValues(result).Inc()
}

// RecordRequest records a completed admin RPC
func (p *PrometheusCollector) RecordRequest(method string, code string, duration time.Duration) {
	if p.config.EnablePerMethodMetrics {
		p.requestsTotal.WithLabelValues(method, code).Inc()
		p.requestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
	} else {
		p.requestsTotal.WithLabelValues(code).Inc()
		p.requestDuration.WithLabelValues(code).Observe(duration.Seconds())
	}
}

// RecordError records an admin RPC error
func (p *PrometheusCollector) RecordError(method string, errorType string) {
	if p.config.EnablePerMethodMetrics {
		p.errorsTotal.WithLabelValues(method, errorType).Inc()
	} else {
		p.errorsTotal.WithLabelValues(errorType).Inc()
	}
}

// RecordActiveRequests updates the active requests gauge
func (p *PrometheusCollector) RecordActiveRequests(method string, delta int) {
	if p.config.EnablePerMethodMetrics {
		p.activeRequests.WithLabelValues(method).Add(float64(delta))
	} else {
		p.activeRequests.WithLabelValues().Add(float64(delta))
	}
}

// GetRegistry returns the Prometheus registry
func (p *PrometheusCollector) GetRegistry() *prometheus.Registry {
	return p.registry
}

// MustRegister registers a custom collector
func (p *PrometheusCollector) MustRegister(collectors ...prometheus.Collector) {
	p.registry.MustRegister(collectors...)
}
