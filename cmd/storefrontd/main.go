// Command storefrontd runs the storefront catalog cache and payment
// orchestrator with a gRPC control plane and an HTTP ops endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	storefront "github.com/wldstore/storefront"
	"github.com/wldstore/storefront/adminrpc"
	"github.com/wldstore/storefront/middleware"
	"github.com/wldstore/storefront/pkg/backend"
	"github.com/wldstore/storefront/pkg/cache"
	"github.com/wldstore/storefront/pkg/config"
	"github.com/wldstore/storefront/pkg/metrics"
	"github.com/wldstore/storefront/pkg/orderguard"
	"github.com/wldstore/storefront/pkg/payment"
	"github.com/wldstore/storefront/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "storefront.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "storefrontd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Setup(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: tracing.DefaultConfig().ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		MaxExportBatch: tracing.DefaultConfig().MaxExportBatch,
		MaxQueueSize:   tracing.DefaultConfig().MaxQueueSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	collector, err := metrics.NewPrometheusCollector(
		metrics.WithConstLabels(map[string]string{"environment": cfg.Tracing.Environment}),
	)
	if err != nil {
		return fmt.Errorf("create metrics collector: %w", err)
	}

	breaker := backend.NewBreaker(backend.WithOnStateChange(func(from, to backend.State) {
		logger.Warn("backend breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}))

	backendOpts := []backend.Option{
		backend.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
		backend.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.Burst),
		backend.WithBreaker(breaker),
		backend.WithTracerProvider(tp),
		backend.WithLogger(logger.Named("backend")),
		backend.WithToken(cfg.Payment.TokenAddress),
	}
	if cfg.Backend.APIKey != "" {
		backendOpts = append(backendOpts, backend.WithHeader("X-API-Key", cfg.Backend.APIKey))
	}
	client, err := backend.New(cfg.Backend.URL, backendOpts...)
	if err != nil {
		return err
	}

	guard, closeGuard, err := newOrderGuard(ctx, cfg.Payment.RedisURL)
	if err != nil {
		return err
	}
	defer closeGuard()

	app := storefront.NewApp(client, backend.NewRelay(client), client,
		storefront.WithLogger(logger),
		storefront.WithMetrics(collector),
		storefront.WithCacheOptions(
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithWindows(cache.Windows{Fresh: cfg.Cache.FreshWindow, Stale: cfg.Cache.StaleWindow}),
		),
		storefront.WithManagerOptions(
			cache.WithLocale(cfg.Cache.Language, cfg.Cache.Country),
			cache.WithWarmDelay(cfg.Cache.WarmDelay),
			cache.WithRewarmDelay(cfg.Cache.RewarmDelay),
			cache.WithSweepAge(cfg.Cache.SweepAge),
			cache.WithSweepInterval(cfg.Cache.SweepInterval),
		),
		storefront.WithPaymentOptions(
			payment.WithTokenAddress(cfg.Payment.TokenAddress),
			payment.WithRecipient(cfg.Payment.Recipient),
			payment.WithPollInterval(cfg.Payment.PollInterval),
			payment.WithPollTimeout(cfg.Payment.PollTimeout),
			payment.WithOrderCreator(client),
			payment.WithOrderGuard(guard, cfg.Payment.OrderGuardTTL),
		),
		storefront.WithNavigationTimeouts(cfg.Navigation.StateTimeout, cfg.Navigation.ScrollTimeout),
		storefront.WithWarmOnStart(cfg.Cache.WarmOnStart),
	)
	app.Start()
	defer app.Close()

	errc := make(chan error, 2)

	opsServer := &http.Server{
		Addr: cfg.Admin.HTTPAddr,
		Handler: newOpsRouter(opsDeps{
			cache:    app.Cache,
			breaker:  breaker,
			registry: collector.GetRegistry(),
			log:      logger.Named("ops"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", zap.String("addr", cfg.Admin.HTTPAddr))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("ops server: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.Admin.JWTSecret == "" {
		logger.Warn("admin.jwt_secret is empty, gRPC control plane disabled")
	} else {
		grpcServer = newAdminServer(cfg.Admin, app, collector, logger.Named("admin"))
		lis, err := net.Listen("tcp", cfg.Admin.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Admin.GRPCAddr, err)
		}
		go func() {
			logger.Info("admin server listening", zap.String("addr", cfg.Admin.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				errc <- fmt.Errorf("admin server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown failed", zap.Error(err))
	}
	return nil
}

// adminChain is the control plane interceptor chain: metrics, auth, role
// check, logging, per-operator rate limit, then the configured timeouts
func adminChain(cfg config.Admin, collector metrics.Collector, logger *zap.Logger) *storefront.Chain {
	chain := storefront.NewChain(
		middleware.Metrics(collector),
		middleware.Auth(middleware.JWTValidator(cfg.JWTSecret)),
		middleware.RequireRole(middleware.RoleAdmin),
		middleware.Logging(
			middleware.WithLogger(logger),
			middleware.WithSlowThreshold(2*time.Second),
		),
		middleware.RateLimitPerOperator(cfg.RateLimit, cfg.Burst),
	)

	return chain.Append(middleware.Timeout(
		middleware.WithTimeout(cfg.RequestTimeout),
		middleware.WithPerMethodTimeout(cfg.MethodTimeouts),
		middleware.WithTimeoutCallback(func(method string, d time.Duration) {
			logger.Warn("admin request timed out", zap.String("method", method), zap.Duration("timeout", d))
		}),
	))
}

// newAdminServer builds the control plane gRPC server
func newAdminServer(cfg config.Admin, app *storefront.App, collector metrics.Collector, logger *zap.Logger) *grpc.Server {
	chain := adminChain(cfg, collector, logger)

	s := grpc.NewServer(
		chain.ServerOption(),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)

	adminrpc.Register(s, adminrpc.NewServer(app.Cache,
		adminrpc.WithLogger(logger),
		adminrpc.WithNavigation(adminrpc.ClearerFunc(app.ClearNavigation)),
	))

	hs := health.NewServer()
	hs.SetServingStatus(adminrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return s
}

// newOrderGuard returns the Redis-backed guard when url is set and the
// in-memory one otherwise
func newOrderGuard(ctx context.Context, url string) (orderguard.Store, func(), error) {
	if url == "" {
		return orderguard.NewMemoryStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse payment.redis_url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect order guard redis: %w", err)
	}

	return orderguard.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
}

func newLogger(cfg config.Log) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log.level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	return zc.Build()
}
