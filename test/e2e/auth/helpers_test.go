package auth_test

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/authflow/internal/auth/app"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
)

/*
 * Helpers for end-to-end tests. Each test runs the real application in
 * process against a throwaway Redis container and a temp SQLite file.
 */

const (
	testIssuer   = "authflow-e2e"
	testPassword = "correct horse battery"
)

// setupAuthService starts Redis and the auth service and returns a client for it.
func setupAuthService(t *testing.T) *authsdk.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := app.LoadConfig()
	cfg.Issuer = testIssuer
	cfg.DatabaseFile = filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.SigningKeyFile = filepath.Join(dir, "signing.pem")
	cfg.RedisAddr = fmt.Sprintf("%s:%s", host, mappedPort.Port())
	cfg.KafkaBrokers = nil
	cfg.Env = "test"
	cfg.LogLevel = "error"
	cfg.Port = freePort(t)

	application, err := app.New(cfg)
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- application.Run() }()
	t.Cleanup(func() {
		require.NoError(t, application.Shutdown())
		require.NoError(t, <-runErr)
	})

	client := authsdk.NewClient(fmt.Sprintf("http://127.0.0.1:%d", cfg.Port))
	require.Eventually(t, func() bool {
		_, err := client.GetLiveness(ctx)
		return err == nil
	}, 10*time.Second, 50*time.Millisecond, "auth service did not come up")

	return client
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.True(t, resp.ExpiresAt.After(time.Now()), "Token should not be expired")
}

// assertStatus checks that err is an API error with the given status.
func assertStatus(t *testing.T, err error, status int, context string) {
	t.Helper()
	require.Error(t, err, context)
	apiErr, ok := err.(*authsdk.APIError)
	require.True(t, ok, "%s - expected an API error, got: %v", context, err)
	require.Equal(t, status, apiErr.StatusCode, context)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status, "Health status should be 'ok'")
}
