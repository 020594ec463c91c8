package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storefront "github.com/wldstore/storefront"
	"github.com/wldstore/storefront/pkg/metrics"
)

// Metrics creates a middleware that records admin RPC counts, latency and
// in-flight requests
func Metrics(collector metrics.Collector) storefront.Middleware {
	if collector == nil {
		collector = metrics.Nop()
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		method := info.FullMethod
		start := time.Now()

		collector.RecordActiveRequests(method, 1)
		defer collector.RecordActiveRequests(method, -1)

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		code := codes.OK
		if err != nil {
			code = codes.Unknown
			if st, ok := status.FromError(err); ok {
				code = st.Code()
			}
			collector.RecordError(method, code.String())
		}

		collector.RecordRequest(method, code.String(), duration)

		return resp, err
	}
}
