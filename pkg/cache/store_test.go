package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type payload struct {
	items []string
}

func countingFetcher(p any, err error) (Fetcher, *int32) {
	var calls int32
	return func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return p, err
	}, &calls
}

func TestGetOrFetchServesFreshEntry(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	want := &payload{items: []string{"tee", "cap"}}
	fetch, calls := countingFetcher(want, nil)

	first, err := s.GetOrFetch(context.Background(), "featured", fetch)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	second, err := s.GetOrFetch(context.Background(), "featured", fetch)
	require.NoError(t, err)

	assert.Same(t, want, first)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestGetOrFetchRefetchesAfterTTL(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now), WithTTL(5*time.Minute))
	fetch, calls := countingFetcher(&payload{}, nil)

	_, err := s.GetOrFetch(context.Background(), "collection:hats", fetch)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = s.GetOrFetch(context.Background(), "collection:hats", fetch)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	m := s.Metrics()
	assert.Equal(t, uint64(0), m.Hits)
	assert.Equal(t, uint64(2), m.Misses)
}

func TestHitRateAccounting(t *testing.T) {
	s := NewStore()
	fetch, _ := countingFetcher(&payload{}, nil)

	assert.Equal(t, 0.0, s.Metrics().HitRate)

	ctx := context.Background()
	for _, key := range []string{"a", "a", "a", "b", "b", "c"} {
		_, err := s.GetOrFetch(ctx, key, fetch)
		require.NoError(t, err)
	}

	m := s.Metrics()
	assert.Equal(t, uint64(3), m.Hits)
	assert.Equal(t, uint64(3), m.Misses)
	assert.Equal(t, uint64(6), m.TotalRequests)
	assert.InDelta(t, 0.5, m.HitRate, 1e-9)
	assert.Equal(t, 3, m.Entries)

	s.ResetCounters()
	assert.Equal(t, 0.0, s.Metrics().HitRate)
}

func TestClearMakesEveryKeyMiss(t *testing.T) {
	s := NewStore()
	fetch, calls := countingFetcher(&payload{}, nil)
	ctx := context.Background()

	for _, key := range []string{FeaturedKey(), CollectionKey("hats"), ProductKey("p1")} {
		_, err := s.GetOrFetch(ctx, key, fetch)
		require.NoError(t, err)
	}
	require.Equal(t, 3, s.Len())

	assert.Equal(t, 3, s.Clear())
	assert.Equal(t, 0, s.Len())

	_, err := s.GetOrFetch(ctx, CollectionKey("hats"), fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
	assert.Equal(t, uint64(4), s.Metrics().Misses)
}

func TestFailedFetchCreatesNoEntry(t *testing.T) {
	s := NewStore()
	netErr := errors.New("network unreachable")
	fetch, calls := countingFetcher(nil, netErr)

	_, err := s.GetOrFetch(context.Background(), "core-collection", fetch)
	assert.ErrorIs(t, err, netErr)
	assert.Equal(t, 0, s.Len())

	_, err = s.GetOrFetch(context.Background(), "core-collection", fetch)
	assert.ErrorIs(t, err, netErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.Equal(t, uint64(2), s.Metrics().Misses)
}

func TestFailedFetchKeepsPreviousEntry(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	old := &payload{items: []string{"old"}}

	good, _ := countingFetcher(old, nil)
	_, err := s.GetOrFetch(context.Background(), "featured", good)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	bad, _ := countingFetcher(nil, errors.New("boom"))
	_, err = s.GetOrFetch(context.Background(), "featured", bad)
	require.Error(t, err)

	entry, ok := s.Peek("featured")
	require.True(t, ok)
	assert.Same(t, old, entry.Payload)
	assert.Equal(t, 10*time.Minute, entry.Age(clock.Now()))
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	s := NewStore()
	release := make(chan struct{})
	var calls int32
	fetch := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &payload{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetOrFetch(context.Background(), "featured", fetch)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClearDiscardsInFlightFetch(t *testing.T) {
	s := NewStore()
	started := make(chan struct{})
	release := make(chan struct{})
	old := &payload{items: []string{"old"}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := s.GetOrFetch(context.Background(), "featured", func(context.Context) (any, error) {
			close(started)
			<-release
			return old, nil
		})
		assert.NoError(t, err)
		assert.Same(t, old, v)
	}()

	<-started
	s.Clear()

	fresh, calls := countingFetcher(&payload{items: []string{"new"}}, nil)
	v, err := s.GetOrFetch(context.Background(), "featured", fresh)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	close(release)
	<-done

	entry, ok := s.Peek("featured")
	require.True(t, ok)
	assert.Same(t, v, entry.Payload)
	assert.NotSame(t, old, entry.Payload)
}

func TestSharedFetchSurvivesFirstCallerCancel(t *testing.T) {
	s := NewStore()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &payload{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.GetOrFetch(ctx, "featured", fetch)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := s.GetOrFetch(context.Background(), "featured", fetch)
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	assert.NoError(t, <-second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, s.Valid("featured"))
}

func TestMetricsStaleKeysAndOldestAge(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now), WithWindows(DefaultWindows()))
	fetch, _ := countingFetcher(&payload{}, nil)
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx, "collection:old", fetch))
	clock.Advance(3 * time.Minute)
	require.NoError(t, s.Refresh(ctx, "collection:mid", fetch))
	clock.Advance(90 * time.Second)
	require.NoError(t, s.Refresh(ctx, "featured", fetch))

	m := s.Metrics()
	assert.Equal(t, []string{"collection:old"}, m.StaleKeys)
	assert.Equal(t, 4*time.Minute+30*time.Second, m.OldestAge)
	assert.Equal(t, uint64(0), m.TotalRequests)

	old, _ := s.Peek("collection:old")
	assert.Equal(t, StateExpired, old.State(clock.Now(), DefaultWindows()))
	mid, _ := s.Peek("collection:mid")
	assert.Equal(t, StateFresh, mid.State(clock.Now(), DefaultWindows()))

	clock.Advance(time.Minute)
	mid, _ = s.Peek("collection:mid")
	assert.Equal(t, StateStale, mid.State(clock.Now(), DefaultWindows()))

	assert.Equal(t, []string{"collection:mid", "collection:old"}, s.OlderThan(2*time.Minute))
}

func TestGetOrFetchAsRejectsWrongType(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Refresh(context.Background(), "featured", func(context.Context) (any, error) {
		return "not a list", nil
	}))

	_, err := GetOrFetchAs(context.Background(), s, "featured", func(context.Context) ([]string, error) {
		return nil, nil
	})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key    string
		kind   KeyKind
		id     string
		hasErr bool
	}{
		{FeaturedKey(), KindFeatured, "", false},
		{CollectionsKey(), KindCollections, "", false},
		{CollectionKey("core-collection"), KindCollection, "core-collection", false},
		{ProductKey("p-42"), KindProduct, "p-42", false},
		{"collection:", KindUnknown, "", true},
		{"basket", KindUnknown, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			kind, id, err := ParseKey(tt.key)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.id, id)
			if tt.hasErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
