package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLockStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	store := NewRedisLockStore(client)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		err := store.Set(ctx, "slot_lock:1:20260901T100000", "42", 5*time.Minute)
		require.NoError(t, err)

		got, err := store.Get(ctx, "slot_lock:1:20260901T100000")
		require.NoError(t, err)
		assert.Equal(t, "42", got)
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		got, err := store.Get(ctx, "slot_lock:missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("SetNX", func(t *testing.T) {
		ok, err := store.SetNX(ctx, "slot_lock:2:key", "7", 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		// Second acquire on the same key must fail
		ok, err = store.SetNX(ctx, "slot_lock:2:key", "8", 5*time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := store.Get(ctx, "slot_lock:2:key")
		require.NoError(t, err)
		assert.Equal(t, "7", got)
	})

	t.Run("SetNXAfterExpiry", func(t *testing.T) {
		ok, err := store.SetNX(ctx, "slot_lock:3:key", "9", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		s.FastForward(time.Minute + time.Millisecond)

		ok, err = store.SetNX(ctx, "slot_lock:3:key", "10", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "slot_lock:4:key", "11", time.Minute))
		require.NoError(t, store.Delete(ctx, "slot_lock:4:key"))

		got, err := store.Get(ctx, "slot_lock:4:key")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("IncrementRefreshesExpiry", func(t *testing.T) {
		window := 10 * time.Minute

		count, err := store.Increment(ctx, "slot_views:5:202609011000", window)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// A second view just before expiry restarts the decay window.
		s.FastForward(window - time.Second)
		count, err = store.Increment(ctx, "slot_views:5:202609011000", window)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		s.FastForward(window - time.Second)
		count, err = store.Increment(ctx, "slot_views:5:202609011000", window)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		// With no views for a full window the counter resets.
		s.FastForward(window + time.Millisecond)
		count, err = store.Increment(ctx, "slot_views:5:202609011000", window)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Ping", func(t *testing.T) {
		err := Ping(ctx, client)
		assert.NoError(t, err)
	})
}
