// Package config resolves storefrontd configuration in priority order:
// defaults, then an optional YAML file, then STOREFRONT_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "STOREFRONT_"

// Config is the resolved runtime configuration
type Config struct {
	Log        Log        `yaml:"log" envPrefix:"LOG_"`
	Backend    Backend    `yaml:"backend" envPrefix:"BACKEND_"`
	Cache      Cache      `yaml:"cache" envPrefix:"CACHE_"`
	Navigation Navigation `yaml:"navigation" envPrefix:"NAVIGATION_"`
	Payment    Payment    `yaml:"payment" envPrefix:"PAYMENT_"`
	Admin      Admin      `yaml:"admin" envPrefix:"ADMIN_"`
	Tracing    Tracing    `yaml:"tracing" envPrefix:"TRACING_"`
}

// Log configures the zap logger
type Log struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Backend configures the REST client
type Backend struct {
	URL       string        `yaml:"url" env:"URL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RateLimit float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	Burst     int           `yaml:"burst" env:"BURST"`
	APIKey    string        `yaml:"api_key" env:"API_KEY"`
}

// Cache configures the catalog cache and its manager
type Cache struct {
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
	FreshWindow   time.Duration `yaml:"fresh_window" env:"FRESH_WINDOW"`
	StaleWindow   time.Duration `yaml:"stale_window" env:"STALE_WINDOW"`
	WarmDelay     time.Duration `yaml:"warm_delay" env:"WARM_DELAY"`
	RewarmDelay   time.Duration `yaml:"rewarm_delay" env:"REWARM_DELAY"`
	SweepAge      time.Duration `yaml:"sweep_age" env:"SWEEP_AGE"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	Language      string        `yaml:"language" env:"LANGUAGE"`
	Country       string        `yaml:"country" env:"COUNTRY"`
	WarmOnStart   bool          `yaml:"warm_on_start" env:"WARM_ON_START"`
}

// Navigation configures snapshot lifetimes
type Navigation struct {
	StateTimeout  time.Duration `yaml:"state_timeout" env:"STATE_TIMEOUT"`
	ScrollTimeout time.Duration `yaml:"scroll_timeout" env:"SCROLL_TIMEOUT"`
}

// Payment configures the orchestrator
type Payment struct {
	TokenAddress  string        `yaml:"token_address" env:"TOKEN_ADDRESS"`
	Recipient     string        `yaml:"recipient" env:"RECIPIENT"`
	PollInterval  time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	PollTimeout   time.Duration `yaml:"poll_timeout" env:"POLL_TIMEOUT"`
	OrderGuardTTL time.Duration `yaml:"order_guard_ttl" env:"ORDER_GUARD_TTL"`
	RedisURL      string        `yaml:"redis_url" env:"REDIS_URL"`
}

// Admin configures the control plane servers
type Admin struct {
	GRPCAddr       string        `yaml:"grpc_addr" env:"GRPC_ADDR"`
	HTTPAddr       string        `yaml:"http_addr" env:"HTTP_ADDR"`
	JWTSecret      string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	RateLimit      float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	Burst          int           `yaml:"burst" env:"BURST"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	// MethodTimeouts overrides RequestTimeout per admin method name, e.g.
	// STOREFRONT_ADMIN_METHOD_TIMEOUTS="InvalidateAll:30s,GetMetrics:2s".
	// Zero lifts the limit.
	MethodTimeouts map[string]time.Duration `yaml:"method_timeouts" env:"METHOD_TIMEOUTS"`
}

// Tracing configures the OpenTelemetry exporter
type Tracing struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	Environment  string  `yaml:"environment" env:"ENVIRONMENT"`
	Endpoint     string  `yaml:"endpoint" env:"ENDPOINT"`
	SamplingRate float64 `yaml:"sampling_rate" env:"SAMPLING_RATE"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Log: Log{
			Level: "info",
		},
		Backend: Backend{
			Timeout:   15 * time.Second,
			RateLimit: 20,
			Burst:     40,
		},
		Cache: Cache{
			TTL:           5 * time.Minute,
			FreshWindow:   2 * time.Minute,
			StaleWindow:   4 * time.Minute,
			WarmDelay:     100 * time.Millisecond,
			RewarmDelay:   500 * time.Millisecond,
			SweepAge:      4 * time.Minute,
			SweepInterval: 3 * time.Minute,
			Language:      "en",
			WarmOnStart:   true,
		},
		Navigation: Navigation{
			StateTimeout:  10 * time.Minute,
			ScrollTimeout: 5 * time.Minute,
		},
		Payment: Payment{
			PollInterval:  3 * time.Second,
			PollTimeout:   5 * time.Minute,
			OrderGuardTTL: 24 * time.Hour,
		},
		Admin: Admin{
			GRPCAddr:       ":9090",
			HTTPAddr:       ":8080",
			RateLimit:      50,
			Burst:          100,
			RequestTimeout: 10 * time.Second,
			MethodTimeouts: map[string]time.Duration{
				"GetMetrics":         2 * time.Second,
				"GetRecommendations": 2 * time.Second,
			},
		},
		Tracing: Tracing{
			ServiceName:  "storefrontd",
			Environment:  "development",
			Endpoint:     "http://localhost:14268/api/traces",
			SamplingRate: 1.0,
		},
	}
}

// Load resolves the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the daemon cannot start with
func (c Config) Validate() error {
	var errs []error

	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	}
	if c.Cache.FreshWindow <= 0 || c.Cache.StaleWindow <= c.Cache.FreshWindow {
		errs = append(errs, fmt.Errorf("cache windows must satisfy 0 < fresh (%s) < stale (%s)",
			c.Cache.FreshWindow, c.Cache.StaleWindow))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Payment.PollInterval <= 0 || c.Payment.PollTimeout < c.Payment.PollInterval {
		errs = append(errs, errors.New("payment poll interval must be positive and not exceed the poll timeout"))
	}
	for method, d := range c.Admin.MethodTimeouts {
		if d < 0 {
			errs = append(errs, fmt.Errorf("admin.method_timeouts.%s must not be negative", method))
		}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, errors.New("tracing.sampling_rate must be within [0, 1]"))
	}

	return errors.Join(errs...)
}
