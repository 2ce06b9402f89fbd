package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRefreshRotationAndReplay walks the full flow:
// 1. Register and log in
// 2. Rotate the refresh token
// 3. Replay the spent token and watch the whole family die
// 4. Log in again with a fresh family
func TestRefreshRotationAndReplay(t *testing.T) {
	client := setupAuthService(t)
	ctx := t.Context()

	user, err := client.Register(ctx, "e2e@example.com", testPassword)
	require.NoError(t, err)

	first, err := client.Login(ctx, "e2e@example.com", testPassword)
	require.NoError(t, err)
	assertTokenResponse(t, first)

	second, err := client.Refresh(ctx, "e2e@example.com", first.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, second)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken, "Refresh token should be rotated")

	_, err = client.Refresh(ctx, "e2e@example.com", first.RefreshToken)
	assertStatus(t, err, http.StatusUnauthorized, "replaying a spent refresh token")

	_, err = client.Refresh(ctx, "e2e@example.com", second.RefreshToken)
	assertStatus(t, err, http.StatusUnauthorized, "descendant of a replayed token")

	// The access token minted before the replay still works until it expires.
	got, err := client.GetUser(ctx, second.AccessToken, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	fresh, err := client.Login(ctx, "e2e@example.com", testPassword)
	require.NoError(t, err)
	_, err = client.Refresh(ctx, "e2e@example.com", fresh.RefreshToken)
	require.NoError(t, err)
}

// TestPasswordResetDoesNotLeakAccounts checks both answers look the same.
func TestPasswordResetDoesNotLeakAccounts(t *testing.T) {
	client := setupAuthService(t)
	ctx := t.Context()

	_, err := client.Register(ctx, "known@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, client.RequestPasswordReset(ctx, "known@example.com"))
	require.NoError(t, client.RequestPasswordReset(ctx, "unknown@example.com"))
}
