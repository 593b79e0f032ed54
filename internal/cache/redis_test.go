package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisStore connects to the server named by CALHUE_TEST_REDIS_ADDR, skipping
// the test when it is unset.
func redisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("CALHUE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CALHUE_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewRedisClient(ctx, addr, os.Getenv("CALHUE_TEST_REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	prefix := fmt.Sprintf("calhue:test:%d:", time.Now().UnixNano())
	return NewRedisStore(client, prefix)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	source := "/photos/redis.png"

	_, err := store.Load(ctx, source)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, source, []byte("payload")))

	art, err := store.Load(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(art.Data))
	assert.WithinDuration(t, time.Now(), art.WrittenAt, time.Minute)
	assert.Equal(t, store.Location(source), art.Location)

	require.NoError(t, store.Delete(ctx, source))
	assert.ErrorIs(t, store.Delete(ctx, source), ErrNotFound)
}

func TestRedisStoreWithCache(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()

	source := writeSource(t, t.TempDir(), "redis.png")
	c := New(store, WithFingerprint("fp"))
	compute, calls := counter("abcdef")

	for range 2 {
		got, err := c.LookupOrCompute(ctx, source, compute)
		require.NoError(t, err)
		assert.Equal(t, []string{"abcdef"}, got)
	}
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, c.Invalidate(ctx, source))
}

func TestRedisLocation(t *testing.T) {
	t.Parallel()

	store := NewRedisStore(nil, "")
	loc := store.Location(filepath.Join(string(filepath.Separator), "a.png"))
	assert.Contains(t, loc, DefaultRedisPrefix)
	assert.Len(t, loc, len(DefaultRedisPrefix)+16)
}

func TestNewRedisClientRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewRedisClient(context.Background(), "", "", 0)
	assert.Error(t, err)
}
