package storefront

import (
	"context"

	"google.golang.org/grpc"
)

// Middleware wraps a unary admin RPC handler
type Middleware func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error)

// Chain represents an ordered list of middleware; the first runs outermost
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Append adds middleware to the end of the chain
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	c.middlewares = append(c.middlewares, middlewares...)
	return c
}

// Len returns the number of middleware in the chain
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// UnaryInterceptor returns a gRPC UnaryServerInterceptor that executes the middleware chain
func (c *Chain) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		currentHandler := handler

		// Wrap in reverse so the first middleware runs first
		for i := len(c.middlewares) - 1; i >= 0; i-- {
			middleware := c.middlewares[i]
			next := currentHandler

			currentHandler = func(ctx context.Context, req interface{}) (interface{}, error) {
				return middleware(ctx, req, info, next)
			}
		}

		return currentHandler(ctx, req)
	}
}

// ServerOption returns the gRPC server option installing the chain
func (c *Chain) ServerOption() grpc.ServerOption {
	return grpc.UnaryInterceptor(c.UnaryInterceptor())
}
