package middleware

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storefront "github.com/wldstore/storefront"
)

// TimeoutConfig holds configuration for timeout middleware
type TimeoutConfig struct {
	Timeout   time.Duration
	OnTimeout func(method string, duration time.Duration)
	// PerMethod is keyed by full method name ("/pkg.Service/Method") or by
	// the bare method name ("Warm"). A zero duration disables the limit.
	PerMethod map[string]time.Duration
}

// TimeoutOption is a functional option for timeout configuration
type TimeoutOption func(*TimeoutConfig)

// WithTimeout sets the default timeout duration
// Default: 10s
func WithTimeout(timeout time.Duration) TimeoutOption {
	return func(c *TimeoutConfig) {
		c.Timeout = timeout
	}
}

// WithTimeoutCallback sets a callback run when the server-side limit fires.
// It is not called when the client cancels first.
func WithTimeoutCallback(callback func(method string, duration time.Duration)) TimeoutOption {
	return func(c *TimeoutConfig) {
		c.OnTimeout = callback
	}
}

// WithPerMethodTimeout sets method-specific timeout durations
func WithPerMethodTimeout(methodTimeouts map[string]time.Duration) TimeoutOption {
	return func(c *TimeoutConfig) {
		for k, v := range methodTimeouts {
			c.PerMethod[k] = v
		}
	}
}

func (c *TimeoutConfig) timeoutFor(fullMethod string) time.Duration {
	if d, ok := c.PerMethod[fullMethod]; ok {
		return d
	}
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		if d, ok := c.PerMethod[fullMethod[i+1:]]; ok {
			return d
		}
	}
	return c.Timeout
}

// Timeout creates a middleware that bounds how long an admin call may run.
// The handler keeps running in the background after the deadline and is
// expected to observe ctx. A client that goes away first gets its own
// cancellation status back.
func Timeout(opts ...TimeoutOption) storefront.Middleware {
	config := &TimeoutConfig{
		Timeout:   10 * time.Second,
		PerMethod: make(map[string]time.Duration),
	}

	for _, opt := range opts {
		opt(config)
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		timeout := config.timeoutFor(info.FullMethod)
		if timeout <= 0 {
			return handler(ctx, req)
		}

		parent := ctx
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type result struct {
			resp interface{}
			err  error
		}
		resultChan := make(chan result, 1)

		go func() {
			resp, err := handler(ctx, req)
			resultChan <- result{resp: resp, err: err}
		}()

		select {
		case res := <-resultChan:
			return res.resp, res.err
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return nil, status.FromContextError(err).Err()
			}
			if config.OnTimeout != nil {
				config.OnTimeout(info.FullMethod, timeout)
			}
			return nil, status.Errorf(codes.DeadlineExceeded, "request timeout after %v", timeout)
		}
	}
}

// TimeoutSimple creates a timeout middleware with a fixed duration
func TimeoutSimple(timeout time.Duration) storefront.Middleware {
	return Timeout(WithTimeout(timeout))
}
