package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wldstore/storefront/pkg/metrics"
)

func TestMetricsMiddleware(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		collector, err := metrics.NewPrometheusCollector()
		if err != nil {
			t.Fatalf("Failed to create metrics collector: %v", err)
		}

		mw := Metrics(collector)
		info := &grpc.UnaryServerInfo{FullMethod: warmMethod}

		var inFlight float64
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			inFlight, _ = getMetricValue(collector.GetRegistry(), "storefront_admin_active_requests")
			return "response", nil
		}

		resp, err := mw(context.Background(), "request", info, handler)
		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if resp != "response" {
			t.Errorf("Expected response 'response', got: %v", resp)
		}

		if inFlight != 1 {
			t.Errorf("Expected 1 active request while handling, got %v", inFlight)
		}
		if v, _ := getMetricValue(collector.GetRegistry(), "storefront_admin_active_requests"); v != 0 {
			t.Errorf("Expected 0 active requests after handling, got %v", v)
		}
		if v, err := getMetricValue(collector.GetRegistry(), "storefront_admin_requests_total"); err != nil || v != 1 {
			t.Errorf("Expected requests_total to be 1, got %v (%v)", v, err)
		}
		if _, err := getMetricValue(collector.GetRegistry(), "storefront_admin_errors_total"); err == nil {
			t.Error("Expected no errors_total series for a successful call")
		}
	})

	t.Run("error request", func(t *testing.T) {
		collector, _ := metrics.NewPrometheusCollector()
		mw := Metrics(collector)

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.Internal, "internal error")
		}

		if _, err := mw(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: warmMethod}, handler); err == nil {
			t.Error("Expected error, got nil")
		}

		if v, err := getMetricValue(collector.GetRegistry(), "storefront_admin_errors_total"); err != nil || v != 1 {
			t.Errorf("Expected errors_total to be 1, got %v (%v)", v, err)
		}
		if code := getLabel(collector.GetRegistry(), "storefront_admin_errors_total", "error_type"); code != "Internal" {
			t.Errorf("Expected error_type Internal, got %q", code)
		}
	})

	t.Run("plain error maps to Unknown", func(t *testing.T) {
		collector, _ := metrics.NewPrometheusCollector()
		mw := Metrics(collector)

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, errors.New("boom")
		}
		_, _ = mw(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: warmMethod}, handler)

		if code := getLabel(collector.GetRegistry(), "storefront_admin_requests_total", "code"); code != "Unknown" {
			t.Errorf("Expected code Unknown, got %q", code)
		}
	})

	t.Run("nil collector", func(t *testing.T) {
		mw := Metrics(nil)
		resp, err := mw(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: warmMethod},
			func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
		if err != nil || resp != "ok" {
			t.Errorf("Expected ok, got %v, %v", resp, err)
		}
	})
}

func getMetricValue(registry *prometheus.Registry, name string) (float64, error) {
	metricFamilies, err := registry.Gather()
	if err != nil {
		return 0, err
	}

	for _, mf := range metricFamilies {
		if mf.GetName() != name || len(mf.Metric) == 0 {
			continue
		}
		metric := mf.Metric[0]
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			return metric.GetCounter().GetValue(), nil
		case dto.MetricType_GAUGE:
			return metric.GetGauge().GetValue(), nil
		}
	}

	return 0, errors.New("metric not found")
}

func getLabel(registry *prometheus.Registry, name, label string) string {
	metricFamilies, _ := registry.Gather()
	for _, mf := range metricFamilies {
		if mf.GetName() != name || len(mf.Metric) == 0 {
			continue
		}
		for _, lp := range mf.Metric[0].GetLabel() {
			if lp.GetName() == label {
				return lp.GetValue()
			}
		}
	}
	return ""
}
