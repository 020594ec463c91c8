package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/wldstore/storefront/pkg/catalog"
	"github.com/wldstore/storefront/pkg/metrics"
)

// Manager keeps the catalog cache warm and consistent with the active locale
type Manager struct {
	store   *Store
	fetcher catalog.Fetcher
	log     *zap.Logger
	metrics metrics.Collector

	localeMu sync.RWMutex
	language string
	country  string

	warmDelay     time.Duration
	rewarmDelay   time.Duration
	sweepAge      time.Duration
	sweepInterval time.Duration

	warming  atomic.Bool
	sweeping atomic.Bool

	bgMu    sync.Mutex
	rewarm  *time.Timer
	closed  bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithManagerMetrics sets the metrics collector used for fetch and warm timings
func WithManagerMetrics(c metrics.Collector) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.metrics = c
		}
	}
}

// WithLocale sets the initial language and country passed to the backend
// Default: "en", ""
func WithLocale(lang, country string) ManagerOption {
	return func(m *Manager) {
		m.language = lang
		m.country = country
	}
}

// WithWarmDelay sets the pause between collection fetches while warming
// Default: 100ms
func WithWarmDelay(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.warmDelay = d
		}
	}
}

// WithRewarmDelay sets how long InvalidateAll waits before warming again
// Default: 500ms
func WithRewarmDelay(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.rewarmDelay = d
		}
	}
}

// WithSweepAge sets the age beyond which the sweep refetches an entry
// Default: 4m
func WithSweepAge(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.sweepAge = d
		}
	}
}

// WithSweepInterval sets how often Start runs the sweep
// Default: 3m
func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// NewManager creates a manager over store using fetcher for every load
func NewManager(store *Store, fetcher catalog.Fetcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:         store,
		fetcher:       fetcher,
		log:           zap.NewNop(),
		metrics:       metrics.Nop(),
		language:      "en",
		warmDelay:     100 * time.Millisecond,
		rewarmDelay:   500 * time.Millisecond,
		sweepAge:      4 * time.Minute,
		sweepInterval: 3 * time.Minute,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Store returns the underlying cache store
func (m *Manager) Store() *Store {
	return m.store
}

// Locale returns the current language and country
func (m *Manager) Locale() (string, string) {
	m.localeMu.RLock()
	defer m.localeMu.RUnlock()
	return m.language, m.country
}

func (m *Manager) fetchOptions() catalog.FetchOptions {
	lang, country := m.Locale()
	return catalog.FetchOptions{Language: lang, Country: country, Active: true}
}

// Featured returns the featured product list
func (m *Manager) Featured(ctx context.Context) ([]catalog.Product, error) {
	return GetOrFetchAs(ctx, m.store, FeaturedKey(), m.featuredFetcher())
}

// Collections returns the collection metadata list
func (m *Manager) Collections(ctx context.Context) ([]catalog.Collection, error) {
	return GetOrFetchAs(ctx, m.store, CollectionsKey(), m.collectionsFetcher())
}

// CollectionProducts returns the products of the collection slug
func (m *Manager) CollectionProducts(ctx context.Context, slug string) ([]catalog.Product, error) {
	return GetOrFetchAs(ctx, m.store, CollectionKey(slug), m.collectionFetcher(slug))
}

// Product returns a single product
func (m *Manager) Product(ctx context.Context, id string) (catalog.Product, error) {
	return GetOrFetchAs(ctx, m.store, ProductKey(id), m.productFetcher(id))
}

func (m *Manager) featuredFetcher() func(context.Context) ([]catalog.Product, error) {
	return func(ctx context.Context) ([]catalog.Product, error) {
		start := time.Now()
		v, err := m.fetcher.FetchFeaturedProducts(ctx, m.fetchOptions())
		m.metrics.ObserveFetch("featured", time.Since(start), err)
		return v, err
	}
}

func (m *Manager) collectionsFetcher() func(context.Context) ([]catalog.Collection, error) {
	return func(ctx context.Context) ([]catalog.Collection, error) {
		start := time.Now()
		v, err := m.fetcher.FetchCollections(ctx, m.fetchOptions())
		m.metrics.ObserveFetch("collections", time.Since(start), err)
		return v, err
	}
}

func (m *Manager) collectionFetcher(slug string) func(context.Context) ([]catalog.Product, error) {
	return func(ctx context.Context) ([]catalog.Product, error) {
		start := time.Now()
		v, err := m.fetcher.FetchCollectionProducts(ctx, slug, m.fetchOptions())
		m.metrics.ObserveFetch("collection", time.Since(start), err)
		return v, err
	}
}

func (m *Manager) productFetcher(id string) func(context.Context) (catalog.Product, error) {
	return func(ctx context.Context) (catalog.Product, error) {
		start := time.Now()
		v, err := m.fetcher.FetchProduct(ctx, id, m.fetchOptions())
		m.metrics.ObserveFetch("product", time.Since(start), err)
		return v, err
	}
}

// fetcherFor rebuilds the untyped loader of an existing key
func (m *Manager) fetcherFor(key string) (Fetcher, error) {
	kind, id, err := ParseKey(key)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindFeatured:
		return untyped(m.featuredFetcher()), nil
	case KindCollections:
		return untyped(m.collectionsFetcher()), nil
	case KindCollection:
		return untyped(m.collectionFetcher(id)), nil
	case KindProduct:
		return untyped(m.productFetcher(id)), nil
	default:
		return nil, fmt.Errorf("no loader for cache key %q", key)
	}
}

func untyped[T any](f func(context.Context) (T, error)) Fetcher {
	return func(ctx context.Context) (any, error) {
		return f(ctx)
	}
}

// WarmIntelligently fetches featured products, the collection metadata and
// then every active collection in priority order. It returns false without
// doing anything when a pass is already running. Fetch failures are logged.
func (m *Manager) WarmIntelligently(ctx context.Context) bool {
	if !m.warming.CompareAndSwap(false, true) {
		m.log.Debug("warming already in progress")
		return false
	}
	defer m.warming.Store(false)

	start := time.Now()
	fetched := 0

	if m.refreshIfInvalid(ctx, FeaturedKey(), untyped(m.featuredFetcher())) {
		fetched++
	}

	if m.refreshIfInvalid(ctx, CollectionsKey(), untyped(m.collectionsFetcher())) {
		fetched++
	}

	entry, ok := m.store.Peek(CollectionsKey())
	if !ok {
		m.metrics.RecordWarm(time.Since(start), fetched)
		return true
	}
	collections, _ := entry.Payload.([]catalog.Collection)

	first := true
	for _, c := range catalog.SortByPriority(catalog.ActiveOnly(collections)) {
		key := CollectionKey(c.Slug)
		if m.store.Valid(key) {
			continue
		}

		if !first {
			select {
			case <-time.After(m.warmDelay):
			case <-ctx.Done():
				m.log.Debug("warming cancelled", zap.Error(ctx.Err()))
				m.metrics.RecordWarm(time.Since(start), fetched)
				return true
			}
		}
		first = false

		if m.refreshIfInvalid(ctx, key, untyped(m.collectionFetcher(c.Slug))) {
			fetched++
		}
	}

	duration := time.Since(start)
	m.metrics.RecordWarm(duration, fetched)
	m.log.Info("cache warmed",
		zap.Int("fetched", fetched),
		zap.Int("entries", m.store.Len()),
		zap.Duration("duration", duration),
	)
	return true
}

// WarmInBackground starts a warming pass without waiting for it. It returns
// false when a pass is already running or the manager is closed.
func (m *Manager) WarmInBackground() bool {
	if m.warming.Load() {
		return false
	}
	return m.goBackground(func(ctx context.Context) {
		m.WarmIntelligently(ctx)
	})
}

func (m *Manager) refreshIfInvalid(ctx context.Context, key string, fetch Fetcher) bool {
	if m.store.Valid(key) {
		return false
	}
	if err := m.store.Refresh(ctx, key, fetch); err != nil {
		m.log.Warn("warming fetch failed", zap.String("cache_key", key), zap.Error(err))
		return false
	}
	return true
}

// CleanupStaleCache refetches, in the background, every entry older than
// the sweep age. It returns false when a sweep is already running.
func (m *Manager) CleanupStaleCache() bool {
	keys := m.store.OlderThan(m.sweepAge)
	if len(keys) == 0 {
		return true
	}

	if !m.sweeping.CompareAndSwap(false, true) {
		return false
	}

	ok := m.goBackground(func(ctx context.Context) {
		defer m.sweeping.Store(false)

		for _, key := range keys {
			fetch, err := m.fetcherFor(key)
			if err != nil {
				m.log.Warn("skipping stale entry", zap.String("cache_key", key), zap.Error(err))
				continue
			}
			if err := m.store.Refresh(ctx, key, fetch); err != nil {
				m.log.Warn("stale refresh failed", zap.String("cache_key", key), zap.Error(err))
				continue
			}
			m.log.Debug("stale entry refreshed", zap.String("cache_key", key))
		}
	})
	if !ok {
		m.sweeping.Store(false)
	}
	return ok
}

// InvalidateAll drops every entry and schedules a warming pass after the
// rewarm delay. It returns the number of entries removed.
func (m *Manager) InvalidateAll(reason string) int {
	n := m.store.Clear()
	m.log.Info("cache invalidated", zap.String("reason", reason), zap.Int("removed", n))

	m.bgMu.Lock()
	defer m.bgMu.Unlock()

	if m.closed {
		return n
	}
	if m.rewarm != nil {
		m.rewarm.Stop()
	}
	m.rewarm = time.AfterFunc(m.rewarmDelay, func() {
		m.goBackground(func(ctx context.Context) {
			m.WarmIntelligently(ctx)
		})
	})

	return n
}

// SetLocale switches the language and country used for catalog fetches.
// A change invalidates the whole cache. It reports whether anything changed.
func (m *Manager) SetLocale(lang, country string) (bool, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return false, fmt.Errorf("parse language %q: %w", lang, err)
	}
	base, _ := tag.Base()
	normalized := base.String()

	if country != "" {
		region, err := language.ParseRegion(country)
		if err != nil {
			return false, fmt.Errorf("parse country %q: %w", country, err)
		}
		country = region.String()
	}

	m.localeMu.Lock()
	if m.language == normalized && m.country == country {
		m.localeMu.Unlock()
		return false, nil
	}
	m.language = normalized
	m.country = country
	m.localeMu.Unlock()

	m.InvalidateAll("locale changed")
	return true, nil
}

// Start runs the stale sweep every sweep interval until Close
func (m *Manager) Start() {
	m.bgMu.Lock()
	if m.started || m.closed {
		m.bgMu.Unlock()
		return
	}
	m.started = true
	m.bgMu.Unlock()

	m.goBackground(func(ctx context.Context) {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CleanupStaleCache()
			case <-ctx.Done():
				return
			}
		}
	})
}

// Close stops the sweep and any scheduled warming and waits for background
// work to finish
func (m *Manager) Close() {
	m.bgMu.Lock()
	if m.closed {
		m.bgMu.Unlock()
		return
	}
	m.closed = true
	if m.rewarm != nil {
		m.rewarm.Stop()
	}
	m.bgMu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Manager) goBackground(fn func(ctx context.Context)) bool {
	m.bgMu.Lock()
	defer m.bgMu.Unlock()

	if m.closed {
		return false
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.ctx)
	}()
	return true
}

// Metrics returns the current cache metrics view
func (m *Manager) Metrics() Metrics {
	return m.store.Metrics()
}
