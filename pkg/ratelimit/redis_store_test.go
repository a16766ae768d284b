package ratelimit_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/medrec/pkg/ratelimit"
)

// startRedis runs a throwaway Redis container and returns a connected client.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

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

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStore(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	store := ratelimit.NewRedisStore(client, "test:")
	clock := &fakeClock{now: time.Now()}
	l, err := ratelimit.New(store, ratelimit.WithClock(clock.Now))
	require.NoError(t, err)

	t.Run("budget and reset", func(t *testing.T) {
		for range 3 {
			ok, err := l.IsAllowed(ctx, "jane@example.com", 3, time.Second)
			require.NoError(t, err)
			require.True(t, ok)
		}
		ok, err := l.IsAllowed(ctx, "jane@example.com", 3, time.Second)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, l.Reset(ctx, "jane@example.com"))
		ok, err = l.IsAllowed(ctx, "jane@example.com", 3, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("window slides", func(t *testing.T) {
		ok, _ := l.IsAllowed(ctx, "slide", 1, time.Minute)
		require.True(t, ok)
		ok, _ = l.IsAllowed(ctx, "slide", 1, time.Minute)
		require.False(t, ok)

		clock.Advance(time.Minute)
		ok, err := l.IsAllowed(ctx, "slide", 1, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("raw key never stored", func(t *testing.T) {
		_, err := l.IsAllowed(ctx, "private@example.com", 5, time.Minute)
		require.NoError(t, err)

		keys, err := client.Keys(ctx, "test:*").Result()
		require.NoError(t, err)
		for _, k := range keys {
			require.NotContains(t, k, "private@example.com")
		}
	})
}
