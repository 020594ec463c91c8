package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storefront "github.com/wldstore/storefront"
)

// LoggingConfig holds configuration for logging middleware
type LoggingConfig struct {
	Logger         *zap.Logger
	LogRequestBody bool
	SlowThreshold  time.Duration
	ExtraFields    map[string]interface{}
}

// LoggingOption is a functional option for logging configuration
type LoggingOption func(*LoggingConfig)

// WithLogger sets a custom zap logger
func WithLogger(logger *zap.Logger) LoggingOption {
	return func(c *LoggingConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithRequestBody enables request body logging
func WithRequestBody() LoggingOption {
	return func(c *LoggingConfig) {
		c.LogRequestBody = true
	}
}

// WithSlowThreshold logs successful calls slower than d at Warn
// Default: 0 (disabled)
func WithSlowThreshold(d time.Duration) LoggingOption {
	return func(c *LoggingConfig) {
		c.SlowThreshold = d
	}
}

// WithExtraFields adds extra fields to all log entries
func WithExtraFields(fields map[string]interface{}) LoggingOption {
	return func(c *LoggingConfig) {
		c.ExtraFields = fields
	}
}

// Logging creates a logging middleware with the provided options
func Logging(opts ...LoggingOption) storefront.Middleware {
	config := &LoggingConfig{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(config)
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		duration := time.Since(start)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", duration),
		}
		for k, v := range config.ExtraFields {
			fields = append(fields, zap.Any(k, v))
		}
		if config.LogRequestBody {
			fields = append(fields, zap.Any("request", req))
		}
		if operator, ok := GetOperator(ctx); ok {
			fields = append(fields, zap.String("operator", operator))
		}

		if err != nil {
			st := status.Convert(err)
			fields = append(fields,
				zap.String("grpc_code", st.Code().String()),
				zap.String("error", st.Message()),
			)

			switch st.Code() {
			case codes.Internal, codes.Unknown, codes.DataLoss:
				config.Logger.Error("admin request failed", fields...)
			case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
				codes.PermissionDenied, codes.Unauthenticated, codes.ResourceExhausted:
				config.Logger.Warn("admin request rejected", fields...)
			default:
				config.Logger.Info("admin request completed with error", fields...)
			}
			return resp, err
		}

		fields = append(fields, zap.String("grpc_code", codes.OK.String()))
		if config.SlowThreshold > 0 && duration > config.SlowThreshold {
			config.Logger.Warn("slow admin request", append(fields, zap.Duration("threshold", config.SlowThreshold))...)
		} else {
			config.Logger.Info("admin request completed", fields...)
		}

		return resp, err
	}
}
