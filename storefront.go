// Package storefront wires the storefront core together: the catalog cache
// and its manager, navigation snapshots, the cart and the payment
// orchestrator. It also provides the interceptor chain used by the admin
// control plane.
package storefront

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wldstore/storefront/pkg/cache"
	"github.com/wldstore/storefront/pkg/cart"
	"github.com/wldstore/storefront/pkg/catalog"
	"github.com/wldstore/storefront/pkg/metrics"
	"github.com/wldstore/storefront/pkg/navigation"
	"github.com/wldstore/storefront/pkg/payment"
)

// App is one storefront session
type App struct {
	Cache      *cache.Manager
	Navigation *navigation.Store // full navigation state
	Scroll     *navigation.Store // scroll-only snapshots
	Restorer   *navigation.Restorer
	Recorder   *navigation.Recorder
	Cart       *cart.Store
	Payments   *payment.Orchestrator

	log         *zap.Logger
	warmOnStart bool
}

// AppConfig holds the pieces NewApp builds components from
type AppConfig struct {
	Logger  *zap.Logger
	Metrics metrics.Collector

	StoreOptions   []cache.StoreOption
	ManagerOptions []cache.ManagerOption
	PaymentOptions []payment.Option

	StateTimeout   time.Duration
	ScrollTimeout  time.Duration
	ScrollDebounce time.Duration
	Scroller       navigation.Scroller
	Scheduler      navigation.Scheduler

	WarmOnStart bool
}

// AppOption configures NewApp
type AppOption func(*AppConfig)

// WithLogger sets the logger handed to every component
func WithLogger(l *zap.Logger) AppOption {
	return func(c *AppConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithMetrics sets the collector handed to every component
func WithMetrics(m metrics.Collector) AppOption {
	return func(c *AppConfig) {
		if m != nil {
			c.Metrics = m
		}
	}
}

// WithCacheOptions adds options for the cache store
func WithCacheOptions(opts ...cache.StoreOption) AppOption {
	return func(c *AppConfig) {
		c.StoreOptions = append(c.StoreOptions, opts...)
	}
}

// WithManagerOptions adds options for the cache manager
func WithManagerOptions(opts ...cache.ManagerOption) AppOption {
	return func(c *AppConfig) {
		c.ManagerOptions = append(c.ManagerOptions, opts...)
	}
}

// WithPaymentOptions adds options for the payment orchestrator
func WithPaymentOptions(opts ...payment.Option) AppOption {
	return func(c *AppConfig) {
		c.PaymentOptions = append(c.PaymentOptions, opts...)
	}
}

// WithNavigationTimeouts sets the lifetime of navigation and scroll snapshots
// Default: 10m, 5m
func WithNavigationTimeouts(state, scroll time.Duration) AppOption {
	return func(c *AppConfig) {
		if state > 0 {
			c.StateTimeout = state
		}
		if scroll > 0 {
			c.ScrollTimeout = scroll
		}
	}
}

// WithScroller sets where restored offsets are applied
func WithScroller(s navigation.Scroller, sched navigation.Scheduler) AppOption {
	return func(c *AppConfig) {
		c.Scroller = s
		if sched != nil {
			c.Scheduler = sched
		}
	}
}

// WithWarmOnStart starts a warming pass from Start
func WithWarmOnStart(enabled bool) AppOption {
	return func(c *AppConfig) {
		c.WarmOnStart = enabled
	}
}

// NewApp builds a session over the catalog backend and the wallet
func NewApp(fetcher catalog.Fetcher, wallet payment.Wallet, checker payment.StatusChecker, opts ...AppOption) *App {
	cfg := AppConfig{
		Logger:         zap.NewNop(),
		Metrics:        metrics.Nop(),
		StateTimeout:   navigation.DefaultStateTimeout,
		ScrollTimeout:  navigation.DefaultScrollTimeout,
		ScrollDebounce: 100 * time.Millisecond,
		Scroller:       navigation.ScrollerFunc(func(x, y int) {}),
		Scheduler:      navigation.Immediate,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := cache.NewStore(append([]cache.StoreOption{cache.WithMetrics(cfg.Metrics)}, cfg.StoreOptions...)...)
	manager := cache.NewManager(store, fetcher, append([]cache.ManagerOption{
		cache.WithLogger(cfg.Logger.Named("cache")),
		cache.WithManagerMetrics(cfg.Metrics),
	}, cfg.ManagerOptions...)...)

	nav := navigation.NewStore(navigation.WithTimeout(cfg.StateTimeout))
	scroll := navigation.NewStore(navigation.WithTimeout(cfg.ScrollTimeout))

	payments := payment.New(wallet, checker, append([]payment.Option{
		payment.WithLogger(cfg.Logger.Named("payment")),
		payment.WithMetrics(cfg.Metrics),
	}, cfg.PaymentOptions...)...)

	return &App{
		Cache:      manager,
		Navigation: nav,
		Scroll:     scroll,
		Restorer: navigation.NewRestorer(nav, cfg.Scroller,
			navigation.WithFallback(scroll),
			navigation.WithScheduler(cfg.Scheduler),
			navigation.WithRestorerLogger(cfg.Logger.Named("navigation")),
		),
		Recorder:    navigation.NewRecorder(scroll, cfg.ScrollDebounce, navigation.WithStateStore(nav)),
		Cart:        cart.NewStore(),
		Payments:    payments,
		log:         cfg.Logger,
		warmOnStart: cfg.WarmOnStart,
	}
}

// Start begins the stale sweep and, when configured, an initial warming pass
func (a *App) Start() {
	a.Cache.Start()
	if a.warmOnStart {
		a.Cache.WarmInBackground()
	}
	a.log.Info("storefront started")
}

// NewCheckout opens a checkout attempt over a snapshot of the cart
func (a *App) NewCheckout(customer payment.Customer, walletAddress string) (*payment.Checkout, error) {
	return a.Payments.NewCheckout(payment.CheckoutRequest{
		Customer:      customer,
		WalletAddress: walletAddress,
		Items:         a.Cart.Snapshot(),
	})
}

// Checkout pays for the current cart and places the order. The cart is
// cleared once the order was recorded.
func (a *App) Checkout(ctx context.Context, customer payment.Customer, walletAddress string, balance decimal.Decimal) (payment.Result, payment.Order, error) {
	co, err := a.NewCheckout(customer, walletAddress)
	if err != nil {
		return payment.Result{}, payment.Order{}, err
	}

	res, order, err := co.Run(ctx, balance)
	if err == nil {
		a.Cart.Clear()
	}
	return res, order, err
}

// ClearNavigation drops every navigation and scroll snapshot and treats the
// next route change as a first visit. It returns the number of snapshots
// removed.
func (a *App) ClearNavigation() int {
	n := a.Navigation.Clear() + a.Scroll.Clear()
	a.Restorer.Reset()
	a.log.Info("navigation cleared", zap.Int("cleared", n))
	return n
}

// Close stops background work and drops pending scroll records
func (a *App) Close() {
	a.Recorder.Close()
	a.Cache.Close()
	a.log.Info("storefront stopped")
}
