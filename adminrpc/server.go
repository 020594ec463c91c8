package adminrpc

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wldstore/storefront/pkg/cache"
)

// Cache is the part of cache.Manager the control plane drives
type Cache interface {
	Metrics() cache.Metrics
	Recommendations() []string
	InvalidateAll(reason string) int
	WarmInBackground() bool
	SetLocale(language, country string) (bool, error)
}

// Clearer is anything holding navigation snapshots
type Clearer interface {
	Clear() int
}

// ClearerFunc adapts a function to Clearer
type ClearerFunc func() int

// Clear calls f
func (f ClearerFunc) Clear() int { return f() }

// Server implements CacheAdminServer
type Server struct {
	cache      Cache
	navigation []Clearer
	log        *zap.Logger
}

var _ CacheAdminServer = (*Server)(nil)

// ServerOption configures a Server
type ServerOption func(*Server)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithNavigation adds navigation stores cleared by ClearNavigation
func WithNavigation(stores ...Clearer) ServerOption {
	return func(s *Server) {
		s.navigation = append(s.navigation, stores...)
	}
}

// NewServer creates the control plane over c
func NewServer(c Cache, opts ...ServerOption) *Server {
	s := &Server{
		cache: c,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetMetrics returns the cache metrics view
func (s *Server) GetMetrics(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return metricsStruct(s.cache.Metrics())
}

// GetRecommendations returns the advisory hints for the current metrics
func (s *Server) GetRecommendations(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	recs := s.cache.Recommendations()
	list := make([]interface{}, len(recs))
	for i, r := range recs {
		list[i] = r
	}
	return toStruct(map[string]interface{}{"recommendations": list})
}

// InvalidateAll drops every cache entry; a warming pass follows shortly
func (s *Server) InvalidateAll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	reason := strings.TrimSpace(req.GetFields()["reason"].GetStringValue())
	if reason == "" {
		return nil, status.Error(codes.InvalidArgument, "reason is required")
	}

	removed := s.cache.InvalidateAll("admin: " + reason)
	return toStruct(map[string]interface{}{"removed": removed})
}

// Warm starts a warming pass in the background
func (s *Server) Warm(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(map[string]interface{}{"started": s.cache.WarmInBackground()})
}

// SetLocale switches the catalog language and country
func (s *Server) SetLocale(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	lang := fields["language"].GetStringValue()
	country := fields["country"].GetStringValue()
	if lang == "" {
		return nil, status.Error(codes.InvalidArgument, "language is required")
	}

	changed, err := s.cache.SetLocale(lang, country)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return toStruct(map[string]interface{}{"changed": changed})
}

// ClearNavigation drops every saved navigation and scroll snapshot
func (s *Server) ClearNavigation(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	cleared := 0
	for _, n := range s.navigation {
		cleared += n.Clear()
	}
	s.log.Info("navigation snapshots cleared", zap.Int("cleared", cleared))
	return toStruct(map[string]interface{}{"cleared": cleared})
}

func metricsStruct(m cache.Metrics) (*structpb.Struct, error) {
	stale := make([]interface{}, len(m.StaleKeys))
	for i, k := range m.StaleKeys {
		stale[i] = k
	}

	return toStruct(map[string]interface{}{
		"hits":               m.Hits,
		"misses":             m.Misses,
		"total_requests":     m.TotalRequests,
		"hit_rate":           m.HitRate,
		"entries":            m.Entries,
		"stale_keys":         stale,
		"oldest_age_seconds": m.OldestAge.Seconds(),
	})
}

func toStruct(v map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
