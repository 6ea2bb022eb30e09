package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(clock.Now, time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_Lifecycle(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := t.Context()

	t.Run("first reserve wins", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "k1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Reserve(ctx, "k1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("pending key is found without a result", func(t *testing.T) {
		result, found, err := store.Lookup(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, result)
	})

	t.Run("completed key replays the result", func(t *testing.T) {
		require.NoError(t, store.Complete(ctx, "k1", "tx-123", time.Hour))
		result, found, err := store.Lookup(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "tx-123", result)
	})

	t.Run("release keeps completed keys", func(t *testing.T) {
		require.NoError(t, store.Release(ctx, "k1"))
		_, found, err := store.Lookup(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("release frees a pending key", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "k2", time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, store.Release(ctx, "k2"))

		ok, err = store.Reserve(ctx, "k2", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired keys can be reserved again", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "k3", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(time.Minute)
		_, found, err := store.Lookup(ctx, "k3")
		require.NoError(t, err)
		assert.False(t, found)

		ok, err = store.Reserve(ctx, "k3", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := t.Context()

	_, err := store.Reserve(ctx, "short", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "long", "tx", time.Hour))
	assert.Equal(t, 2, store.Size())

	clock.Advance(2 * time.Minute)
	store.sweep()
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentReserve(t *testing.T) {
	store, _ := newTestStore(t)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Reserve(t.Context(), "payment-key", time.Hour)
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
