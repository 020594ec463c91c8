package adminrpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	storefront "github.com/wldstore/storefront"
	"github.com/wldstore/storefront/middleware"
	"github.com/wldstore/storefront/pkg/cache"
	"github.com/wldstore/storefront/pkg/navigation"
)

const secret = "admin-test-secret"

type fakeCache struct {
	mu          sync.Mutex
	metrics     cache.Metrics
	recs        []string
	invalidated []string
	warming     bool
	locale      [2]string
}

func (f *fakeCache) Metrics() cache.Metrics   { return f.metrics }
func (f *fakeCache) Recommendations() []string { return f.recs }

func (f *fakeCache) InvalidateAll(reason string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, reason)
	return 7
}

func (f *fakeCache) WarmInBackground() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.warming {
		return false
	}
	f.warming = true
	return true
}

func (f *fakeCache) SetLocale(lang, country string) (bool, error) {
	if lang == "??" {
		return false, errors.New("parse language")
	}
	changed := f.locale != [2]string{lang, country}
	f.locale = [2]string{lang, country}
	return changed, nil
}

func startServer(t *testing.T, srv CacheAdminServer) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	chain := storefront.NewChain(
		middleware.Auth(middleware.JWTValidator(secret)),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	s := grpc.NewServer(chain.ServerOption())
	Register(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn)
}

func adminContext(t *testing.T, roles ...string) context.Context {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.OperatorClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "editor@shop",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestGetMetrics(t *testing.T) {
	fc := &fakeCache{metrics: cache.Metrics{
		Hits:          3,
		Misses:        1,
		TotalRequests: 4,
		HitRate:       0.75,
		Entries:       2,
		StaleKeys:     []string{"collection:hats"},
		OldestAge:     150 * time.Second,
	}}
	client := startServer(t, NewServer(fc))

	out, err := client.GetMetrics(adminContext(t, middleware.RoleAdmin))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, float64(3), m["hits"])
	assert.Equal(t, float64(4), m["total_requests"])
	assert.Equal(t, 0.75, m["hit_rate"])
	assert.Equal(t, []interface{}{"collection:hats"}, m["stale_keys"])
	assert.Equal(t, float64(150), m["oldest_age_seconds"])
}

func TestGetRecommendations(t *testing.T) {
	fc := &fakeCache{recs: []string{"warm more"}}
	client := startServer(t, NewServer(fc))

	out, err := client.GetRecommendations(adminContext(t, middleware.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"warm more"}, out.AsMap()["recommendations"])
}

func TestInvalidateAll(t *testing.T) {
	fc := &fakeCache{}
	client := startServer(t, NewServer(fc))
	ctx := adminContext(t, middleware.RoleAdmin)

	out, err := client.InvalidateAll(ctx, "price update")
	require.NoError(t, err)
	assert.Equal(t, float64(7), out.AsMap()["removed"])
	assert.Equal(t, []string{"admin: price update"}, fc.invalidated)

	_, err = client.InvalidateAll(ctx, "  ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestWarm(t *testing.T) {
	client := startServer(t, NewServer(&fakeCache{}))
	ctx := adminContext(t, middleware.RoleAdmin)

	out, err := client.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, out.AsMap()["started"])

	out, err = client.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, out.AsMap()["started"])
}

func TestSetLocale(t *testing.T) {
	client := startServer(t, NewServer(&fakeCache{}))
	ctx := adminContext(t, middleware.RoleAdmin)

	out, err := client.SetLocale(ctx, "es", "MX")
	require.NoError(t, err)
	assert.Equal(t, true, out.AsMap()["changed"])

	out, err = client.SetLocale(ctx, "es", "MX")
	require.NoError(t, err)
	assert.Equal(t, false, out.AsMap()["changed"])

	_, err = client.SetLocale(ctx, "??", "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SetLocale(ctx, "", "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestClearNavigation(t *testing.T) {
	nav := navigation.NewStore()
	scroll := navigation.NewStore(navigation.WithTimeout(navigation.DefaultScrollTimeout))
	nav.Save(navigation.Snapshot{Path: "/collections/hats", ScrollY: 400})
	scroll.Save(navigation.Snapshot{Path: "/", ScrollY: 10})
	scroll.Save(navigation.Snapshot{Path: "/cart", ScrollY: 20})

	client := startServer(t, NewServer(&fakeCache{}, WithNavigation(nav, scroll)))

	out, err := client.ClearNavigation(adminContext(t, middleware.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, float64(3), out.AsMap()["cleared"])
	assert.Equal(t, 0, nav.Len())
	assert.Equal(t, 0, scroll.Len())
}

func TestClearNavigationWithClearerFunc(t *testing.T) {
	calls := 0
	client := startServer(t, NewServer(&fakeCache{}, WithNavigation(ClearerFunc(func() int {
		calls++
		return 4
	}))))

	out, err := client.ClearNavigation(adminContext(t, middleware.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, float64(4), out.AsMap()["cleared"])
	assert.Equal(t, 1, calls)
}

func TestRequiresAdmin(t *testing.T) {
	fc := &fakeCache{}
	client := startServer(t, NewServer(fc))

	_, err := client.InvalidateAll(context.Background(), "no token")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.InvalidateAll(adminContext(t, "viewer"), "wrong role")
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	assert.Empty(t, fc.invalidated)
}

func TestServesRealManager(t *testing.T) {
	m := cache.NewManager(cache.NewStore(), nil)
	t.Cleanup(m.Close)

	client := startServer(t, NewServer(m))
	out, err := client.GetRecommendations(adminContext(t, middleware.RoleAdmin))
	require.NoError(t, err)
	assert.NotEmpty(t, out.AsMap()["recommendations"])
}
