package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisGuestStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGuestStore(client), mr
}

func TestRedisGuestStoreIncrementAndUsage(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	usage, err := store.Usage(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Count)

	require.NoError(t, store.Increment(ctx, "g1", now, 24*time.Hour))
	require.NoError(t, store.Increment(ctx, "g1", now.Add(time.Minute), 24*time.Hour))

	usage, err = store.Usage(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Count)
	assert.True(t, usage.StartedAt.Equal(now), "window should start at first increment")
}

func TestRedisGuestStoreReopensExpiredWindow(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	start := time.Now().Truncate(time.Second)

	require.NoError(t, store.Increment(ctx, "g1", start, 24*time.Hour))
	require.NoError(t, store.Increment(ctx, "g1", start.Add(time.Hour), 24*time.Hour))

	// 窗口过期后的计数应重新开窗
	later := start.Add(25 * time.Hour)
	require.NoError(t, store.Increment(ctx, "g1", later, 24*time.Hour))

	usage, err := store.Usage(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Count)
	assert.True(t, usage.StartedAt.Equal(later))
}

func TestRedisGuestStoreKeysAreIsolated(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	require.NoError(t, store.Increment(ctx, "g1", now, 24*time.Hour))

	usage, err := store.Usage(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Count)
}

func TestRedisGuestStoreSetsTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	require.NoError(t, store.Increment(ctx, "g1", now, 24*time.Hour))
	ttl := mr.TTL(guestKeyPrefix + "g1")
	assert.Equal(t, 24*time.Hour, ttl)
}
