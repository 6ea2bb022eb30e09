//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisStore(t *testing.T) *RedisIdempotencyStore {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	store, err := NewRedisIdempotencyStore(ctx, &redis.Options{Addr: endpoint})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisIdempotencyStore(t *testing.T) {
	store := newRedisStore(t)
	ctx := t.Context()

	ok, err := store.Reserve(ctx, "pay-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, "pay-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	result, found, err := store.Lookup(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, result, "pending marker is not exposed")

	require.NoError(t, store.Complete(ctx, "pay-1", "tx-1", time.Minute))
	require.NoError(t, store.Release(ctx, "pay-1"))
	result, found, err = store.Lookup(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tx-1", result)

	_, err = store.Reserve(ctx, "pay-2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "pay-2"))
	_, found, err = store.Lookup(ctx, "pay-2")
	require.NoError(t, err)
	assert.False(t, found)
}
