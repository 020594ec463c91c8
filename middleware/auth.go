// Package middleware provides unary interceptors for the storefront admin
// control plane.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	storefront "github.com/wldstore/storefront"
)

// RoleAdmin is the role required for cache and navigation administration
const RoleAdmin = "admin"

type ctxKey int

const (
	operatorKey ctxKey = iota
	rolesKey
)

// AuthValidator validates a token and returns a context carrying the
// caller's identity
type AuthValidator func(ctx context.Context, token string) (context.Context, error)

// Auth creates an authentication middleware with the provided validator
//
// Example usage:
//
//	chain := storefront.NewChain(
//	    middleware.Auth(middleware.JWTValidator(secret)),
//	    middleware.RequireRole(middleware.RoleAdmin),
//	)
func Auth(validator AuthValidator) storefront.Middleware {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token, err := extractToken(ctx)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated,
				"missing or invalid authentication token: %v", err)
		}

		ctx, err = validator(ctx, token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "authentication failed: %v", err)
		}

		return handler(ctx, req)
	}
}

// OperatorClaims are the JWT claims issued to CMS operators
type OperatorClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTValidator creates an HMAC-signed JWT validator
func JWTValidator(secret string) AuthValidator {
	return func(ctx context.Context, tokenString string) (context.Context, error) {
		claims := &OperatorClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			return ctx, err
		}
		if !token.Valid {
			return ctx, errors.New("invalid token")
		}
		if claims.Subject == "" {
			return ctx, errors.New("token has no subject")
		}

		ctx = context.WithValue(ctx, operatorKey, claims.Subject)
		ctx = context.WithValue(ctx, rolesKey, claims.Roles)
		return ctx, nil
	}
}

// RequireRole creates middleware that requires one of the given roles. It
// must run after Auth.
func RequireRole(requiredRoles ...string) storefront.Middleware {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		roles, ok := GetRoles(ctx)
		if !ok {
			return nil, status.Error(codes.PermissionDenied, "no roles found in context")
		}

		for _, userRole := range roles {
			for _, requiredRole := range requiredRoles {
				if userRole == requiredRole {
					return handler(ctx, req)
				}
			}
		}

		return nil, status.Errorf(codes.PermissionDenied,
			"insufficient permissions: requires one of %v, operator has %v", requiredRoles, roles)
	}
}

// extractToken reads the bearer token from the gRPC metadata
func extractToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata found")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return "", errors.New("no authentication token found")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeaders[0], "Bearer "))
	if token == "" {
		return "", errors.New("empty authentication token")
	}
	return token, nil
}

// GetOperator retrieves the authenticated operator id from context
func GetOperator(ctx context.Context) (string, bool) {
	operator, ok := ctx.Value(operatorKey).(string)
	return operator, ok
}

// GetRoles retrieves the operator roles from context
func GetRoles(ctx context.Context) ([]string, bool) {
	roles, ok := ctx.Value(rolesKey).([]string)
	return roles, ok
}
