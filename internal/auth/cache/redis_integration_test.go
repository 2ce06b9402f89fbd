package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/authflow/internal/auth/cache"
)

func TestRedisBackendAgainstRealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	backend := cache.NewRedisBackend(client)
	require.NoError(t, backend.Ping(ctx))

	c := cache.NewVersioned(backend, "Profile", 1, profileID)
	require.NoError(t, c.Set(quietCtx(), &profile{ID: "p1", Name: "Ada"}))
	require.NoError(t, c.SetAlias(quietCtx(), "email:ada", "p1", time.Minute))

	got, err := c.GetMany(quietCtx(), []string{"p1", "email:ada", "nope"})
	require.NoError(t, err)
	require.Equal(t, "Ada", got[0].Name)
	require.Equal(t, "Ada", got[1].Name)
	require.Nil(t, got[2])
}
