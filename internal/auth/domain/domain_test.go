package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newLoginToken(t *testing.T) *domain.Token {
	t.Helper()
	tok, err := domain.NewToken(domain.NewTokenParams{
		ID:          "tok-1",
		TokenHash:   "hash-1",
		UserID:      "user-1",
		RootTokenID: "tok-1",
		Type:        domain.TokenTypeLogin,
		TTL:         time.Hour,
		Now:         t0,
	})
	require.NoError(t, err)
	return tok
}

func TestTokenLifecycle(t *testing.T) {
	tok := newLoginToken(t)
	require.True(t, tok.IsRoot())
	require.Equal(t, t0.Add(time.Hour), tok.ExpiresAt)

	created := tok.PullEvents()
	require.Len(t, created, 1)
	require.Equal(t, domain.EventTokenWasCreated, created[0].Name)
	require.NotContains(t, created[0].Data, "token")
	require.Empty(t, tok.PullEvents(), "buffer is drained once")

	require.True(t, tok.IsValidFor("user-1", t0.Add(time.Minute)))
	require.False(t, tok.IsValidFor("user-2", t0.Add(time.Minute)))
	require.False(t, tok.IsValidFor("user-1", t0.Add(time.Hour)))

	require.NoError(t, tok.Use(t0.Add(time.Minute)))
	require.ErrorIs(t, tok.Use(t0.Add(2*time.Minute)), domain.ErrTokenUsed)
	require.Equal(t, t0.Add(time.Minute), *tok.UsedAt)
	require.False(t, tok.IsValidFor("user-1", t0.Add(time.Minute)))

	used := tok.PullEvents()
	require.Len(t, used, 1)
	require.Equal(t, domain.EventTokenWasUsed, used[0].Name)
	require.Equal(t, "tok-1", used[0].Data["entityId"])
}

func TestNewTokenCarriesDeliverable(t *testing.T) {
	tok, err := domain.NewToken(domain.NewTokenParams{
		ID:          "tok-2",
		TokenHash:   "hash-2",
		UserID:      "user-1",
		RootTokenID: "tok-2",
		Type:        domain.TokenTypeEmailVerification,
		TTL:         time.Hour,
		Now:         t0,
		Email:       "a@example.com",
		Deliverable: "signed-link",
	})
	require.NoError(t, err)

	ev := tok.PullEvents()[0]
	require.Equal(t, "a@example.com", ev.Data["email"])
	require.Equal(t, "signed-link", ev.Data["token"])
	require.Equal(t, "EMAIL_VERIFICATION", ev.Data["type"])
}

func TestNewTokenValidation(t *testing.T) {
	tests := []struct {
		name string
		p    domain.NewTokenParams
	}{
		{"missing id", domain.NewTokenParams{TokenHash: "h", UserID: "u", RootTokenID: "r", Type: domain.TokenTypeLogin, TTL: time.Hour}},
		{"bad type", domain.NewTokenParams{ID: "i", TokenHash: "h", UserID: "u", RootTokenID: "r", Type: "NOPE", TTL: time.Hour}},
		{"no ttl", domain.NewTokenParams{ID: "i", TokenHash: "h", UserID: "u", RootTokenID: "r", Type: domain.TokenTypeLogin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewToken(tt.p)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestActionRequestTransitions(t *testing.T) {
	ar, err := domain.NewActionRequest("ar-1", domain.ActionEmailVerification, map[string]any{"userId": "u1"}, t0)
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusProcessing, ar.Status)

	created := ar.PullEvents()
	require.Len(t, created, 1)
	require.Nil(t, created[0].Snapshot)
	require.Equal(t, "PROCESSING", created[0].Data["status"])

	require.NoError(t, ar.TransitionTo(domain.ActionStatusCompleted, t0.Add(time.Second)))
	require.Equal(t, t0.Add(time.Second), ar.UpdatedAt)

	err = ar.TransitionTo(domain.ActionStatusFailed, t0.Add(2*time.Second))
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.Equal(t, domain.ActionStatusCompleted, ar.Status)

	updated := ar.PullEvents()
	require.Len(t, updated, 1)
	require.Equal(t, domain.EventActionRequestStatusWasUpdated, updated[0].Name)

	require.True(t, domain.ActionStatusFailed.IsTerminal())
	require.False(t, domain.ActionStatusProcessing.IsTerminal())
}

func TestActionRequestRejectsUnknownAction(t *testing.T) {
	_, err := domain.NewActionRequest("ar-1", "DELETE_EVERYTHING", nil, t0)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestUserVerifyEmailOrder(t *testing.T) {
	u, err := domain.NewUser("u1", "Old@Example.com", "hash", nil, t0)
	require.NoError(t, err)
	require.Equal(t, "old@example.com", u.Email)
	require.Equal(t, []string{domain.RoleUser}, u.Roles)
	u.PullEvents()

	require.NoError(t, u.RequestEmailChange("new@example.com", t0))
	u.PullEvents()

	require.False(t, u.VerifyEmail("old@example.com", t0), "stale address is ignored")
	require.Empty(t, u.PullEvents())
	require.Equal(t, "old@example.com", u.Email)

	require.True(t, u.VerifyEmail("new@example.com", t0.Add(time.Minute)))
	events := u.PullEvents()
	require.Len(t, events, 2)
	require.Equal(t, domain.EventUserEmailWasVerified, events[0].Name)
	require.Equal(t, domain.EventUserWasUpdated, events[1].Name)
	require.Equal(t, "new@example.com", u.Email)
	require.Empty(t, u.PendingEmail)
	require.NotNil(t, u.EmailVerifiedAt)
}

func TestUserResetPassword(t *testing.T) {
	u, err := domain.NewUser("u1", "a@example.com", "hash", nil, t0)
	require.NoError(t, err)
	u.PullEvents()

	require.ErrorIs(t, u.ResetPassword("", t0), domain.ErrValidation)
	require.NoError(t, u.ResetPassword("new-hash", t0))

	events := u.PullEvents()
	require.Equal(t, domain.EventUserPasswordWasReset, events[0].Name)
	require.Equal(t, "new-hash", events[0].Data["password"])

	snap, ok := events[1].Snapshot.(domain.UserDTO)
	require.True(t, ok)
	require.Equal(t, "u1", snap.ID)
}

func TestNormalizeEmail(t *testing.T) {
	_, err := domain.NormalizeEmail("not an email")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = domain.NormalizeEmail("Bob <bob@example.com>")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestActorContext(t *testing.T) {
	_, ok := domain.ActorFromContext(context.Background())
	require.False(t, ok)

	ctx := domain.WithActor(context.Background(), domain.Actor{ID: "u1", Roles: []string{domain.RoleUser}})
	a, ok := domain.ActorFromContext(ctx)
	require.True(t, ok)
	require.True(t, a.CanManage("u1"))
	require.False(t, a.CanManage("u2"))

	admin := domain.Actor{ID: "root", Roles: []string{domain.RoleAdmin}}
	require.True(t, admin.CanManage("u2"))
}
