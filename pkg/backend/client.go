// Package backend is the REST client for the storefront backend: catalog,
// balances, transaction status, orders and the wallet relay.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodySize = 4 << 20

// StatusError is a non-2xx backend response
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the storefront backend. Every call waits on a token
// bucket, runs through a circuit breaker and is traced.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	breaker *Breaker
	tracer  trace.Tracer
	log     *zap.Logger

	token   string
	headers http.Header
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit sets the request rate and burst
// Default: 20 rps, burst 40
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker replaces the circuit breaker
func WithBreaker(b *Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithTracerProvider sets where spans are sent
// Default: the global provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer("github.com/wldstore/storefront/pkg/backend")
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithToken sets the payment token address used to select balances
func WithToken(addr string) Option {
	return func(c *Client) {
		c.token = addr
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(20, 40),
		breaker: NewBreaker(),
		tracer:  otel.Tracer("github.com/wldstore/storefront/pkg/backend"),
		log:     zap.NewNop(),
		headers: make(http.Header),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Breaker returns the client's circuit breaker
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// do sends a request and returns the body of a 2xx response. Other
// responses become *StatusError.
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, body any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "backend "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
	defer span.End()

	start := time.Now()
	var out []byte

	err := c.limiter.Wait(ctx)
	if err == nil {
		err = c.breaker.Execute(func() error {
			data, code, rerr := c.roundTrip(ctx, method, path, query, body)
			out = data
			span.SetAttributes(attribute.Int("http.status_code", code))
			return rerr
		})
	}

	c.log.Debug("backend call",
		zap.String("method", method),
		zap.String("route", route),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	return out, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any) ([]byte, int, error) {
	// path is already escaped
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, 0, fmt.Errorf("build request path: %w", err)
	}
	u.Path = unescaped
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, 0, err
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, resp.StatusCode, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return data, resp.StatusCode, nil
}
