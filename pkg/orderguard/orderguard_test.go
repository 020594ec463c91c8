package orderguard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return NewRedisStore(client), mr
}

func TestMemoryStoreReserve(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "ord-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, "ord-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Reserve(ctx, "ord-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.Reserve(ctx, "ord-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreReserve(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "ord-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("order:ord-1"))

	ok, err = s.Reserve(ctx, "ord-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = s.Reserve(ctx, "ord-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr := setupTestRedis(t)
	mr.Close()

	_, err := s.Reserve(context.Background(), "ord-1", time.Minute)
	assert.Error(t, err)
}
