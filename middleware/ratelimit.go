package middleware

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storefront "github.com/wldstore/storefront"
)

// RateLimit creates a global rate limiting middleware using a token bucket.
// Requests over the limit are rejected with ResourceExhausted.
func RateLimit(ratePerSec float64, burst int) storefront.Middleware {
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), burst)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limiter.Allow() {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(ctx, req)
	}
}

// PerClientRateLimiter manages rate limiters for individual clients
type PerClientRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewPerClientRateLimiter creates a new per-client rate limiter
func NewPerClientRateLimiter(ratePerSec float64, burst int) *PerClientRateLimiter {
	return &PerClientRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(ratePerSec),
		burst:    burst,
	}
}

// GetLimiter returns the rate limiter for the given client
func (p *PerClientRateLimiter) GetLimiter(clientID string) *rate.Limiter {
	p.mu.RLock()
	limiter, exists := p.limiters[clientID]
	p.mu.RUnlock()

	if exists {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := p.limiters[clientID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(p.rate, p.burst)
	p.limiters[clientID] = limiter

	return limiter
}

// RateLimitPerOperator limits each authenticated operator separately. It
// must run after Auth; unauthenticated calls share one bucket.
func RateLimitPerOperator(ratePerSec float64, burst int) storefront.Middleware {
	limiters := NewPerClientRateLimiter(ratePerSec, burst)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		operator, ok := GetOperator(ctx)
		if !ok {
			operator = "anonymous"
		}

		if !limiters.GetLimiter(operator).Allow() {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for operator: %s", operator)
		}

		return handler(ctx, req)
	}
}
