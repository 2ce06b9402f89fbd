package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/events"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
)

func TestEmailVerificationCompletes(t *testing.T) {
	f := newFixture(t)
	u, _ := f.register(t, "u1@example.com")

	link := f.events.lastDeliverable(t, domain.TokenTypeEmailVerification)
	ar, err := f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: link})
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusProcessing, ar.Status)
	require.Equal(t, domain.ActionEmailVerification, ar.Action)

	got, err := f.actions.Get(quietCtx(), ar.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusCompleted, got.Status)

	user, err := f.store.Users().GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, user.EmailVerifiedAt)
	require.Empty(t, user.PendingEmail)

	verified := f.events.named(domain.EventUserEmailWasVerified)
	require.Len(t, verified, 1)
}

func TestRedeemTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1@example.com")
	link := f.events.lastDeliverable(t, domain.TokenTypeEmailVerification)

	_, err := f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: link})
	require.NoError(t, err)

	_, err = f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: link})
	require.ErrorIs(t, err, domain.ErrAuthFailure)
}

func TestRedeemRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	_, err := f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: "not.a.token"})
	require.ErrorIs(t, err, domain.ErrAuthFailure)
}

func TestStaleVerificationIsAcceptedButIgnored(t *testing.T) {
	f := newFixture(t)
	u, _ := f.register(t, "old@example.com")
	stale := f.events.lastDeliverable(t, domain.TokenTypeEmailVerification)

	ctx := domain.WithActor(quietCtx(), domain.Actor{ID: u.ID, Roles: []string{domain.RoleUser}})
	require.NoError(t, f.users.RequestEmailChange(ctx, u.ID, "new@example.com"))

	ar, err := f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: stale})
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusProcessing, ar.Status)

	user, err := f.store.Users().GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "old@example.com", user.Email)
	require.Equal(t, "new@example.com", user.PendingEmail)
	require.Nil(t, user.EmailVerifiedAt)
	require.Empty(t, f.events.named(domain.EventUserEmailWasVerified))

	// The fresh link still works.
	fresh := f.events.lastDeliverable(t, domain.TokenTypeEmailVerification)
	_, err = f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: fresh})
	require.NoError(t, err)

	user, err = f.store.Users().GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", user.Email)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	u, password := f.register(t, "u1@example.com")
	session := f.login(t, u.Email, password)

	issued, err := f.issuer.IssuePasswordReset(quietCtx(), u.Email)
	require.NoError(t, err)
	require.NotNil(t, issued)

	const newPassword = "a much better password"
	ar, err := f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: issued.Signed, Password: newPassword})
	require.NoError(t, err)
	require.Equal(t, domain.ActionPasswordReset, ar.Action)

	got, err := f.actions.Get(quietCtx(), ar.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusCompleted, got.Status)
	require.NotContains(t, got.Data, "password")

	// Every refresh family was swept.
	f.requireGone(t, session.Token.ID)

	_, err = f.tokens.Issue(quietCtx(), service.IssueRequest{Email: u.Email, Password: password})
	require.ErrorIs(t, err, domain.ErrAuthFailure)
	f.login(t, u.Email, newPassword)

	// Forwarders only ever saw the hash masked.
	for _, e := range f.events.named(domain.EventUserPasswordWasReset) {
		require.Equal(t, events.Mask, e.Data["password"])
	}
	for _, e := range f.events.named(domain.EventActionRequestWasCreated) {
		data := e.Data["data"].(map[string]any)
		if e.Data["action"] == string(domain.ActionPasswordReset) {
			require.Equal(t, events.Mask, data["password"])
		}
	}
}

func TestPasswordResetRejectsWeakPasswordWithoutConsuming(t *testing.T) {
	f := newFixture(t)
	u, _ := f.register(t, "u1@example.com")

	issued, err := f.issuer.IssuePasswordReset(quietCtx(), u.Email)
	require.NoError(t, err)

	_, err = f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: issued.Signed, Password: "short"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: issued.Signed, Password: "long enough now"})
	require.NoError(t, err)
}

func TestPasswordResetForUnknownEmailIssuesNothing(t *testing.T) {
	f := newFixture(t)

	issued, err := f.issuer.IssuePasswordReset(quietCtx(), "ghost@example.com")
	require.NoError(t, err)
	require.Nil(t, issued)
	require.Empty(t, f.events.named(domain.EventTokenWasCreated))
}

func TestResendRebuildsLink(t *testing.T) {
	f := newFixture(t)
	u, _ := f.register(t, "u1@example.com")

	created := f.events.named(domain.EventTokenWasCreated)
	require.Len(t, created, 1)
	tokenID := created[0].EntityID

	resent, err := f.issuer.Resend(quietCtx(), tokenID)
	require.NoError(t, err)
	require.Equal(t, tokenID, resent.Token.ID)
	require.Len(t, f.events.named(domain.EventTokenWasCreated), 2)

	_, err = f.actions.Redeem(quietCtx(), service.RedeemRequest{Token: resent.Signed})
	require.NoError(t, err)

	// Spent tokens cannot be resent.
	_, err = f.issuer.Resend(quietCtx(), tokenID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	user, err := f.store.Users().GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, user.EmailVerifiedAt)
}

func TestSagaRecordsFailure(t *testing.T) {
	f := newFixture(t)

	ar, err := domain.NewActionRequest("ar-1", domain.ActionEmailVerification,
		map[string]any{"userId": "missing", "email": "x@example.com"}, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.actions.ActionRequests.SaveActionRequest(quietCtx(), ar))

	f.bus.PublishFrom(quietCtx(), ar)

	got, err := f.actions.Get(quietCtx(), "ar-1")
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusFailed, got.Status)
}

func TestSagaRecordsFailureOnPanic(t *testing.T) {
	f := newFixture(t)

	ar, err := domain.NewActionRequest("ar-1", domain.ActionPasswordReset,
		map[string]any{"userId": "missing"}, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.actions.ActionRequests.SaveActionRequest(quietCtx(), ar))

	saga := service.ActionRequestSaga(&service.UserService{}, f.actions)
	cmd, err := saga(quietCtx(), ar.PullEvents()[0])
	require.NoError(t, err)
	require.NoError(t, cmd(quietCtx()))

	got, err := f.actions.Get(quietCtx(), "ar-1")
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusFailed, got.Status)
}

// cancelOn cancels the redeeming request as soon as the named event is
// forwarded, i.e. after the token spend has committed.
type cancelOn struct {
	name   string
	cancel context.CancelFunc
}

func (c cancelOn) Forward(_ context.Context, e domain.Event) error {
	if e.Name == c.name {
		c.cancel()
	}
	return nil
}

func TestRedeemCompletesAfterCallerGoesAway(t *testing.T) {
	f := newFixture(t)
	u, _ := f.register(t, "u1@example.com")
	link := f.events.lastDeliverable(t, domain.TokenTypeEmailVerification)

	ctx, cancel := context.WithCancel(quietCtx())
	defer cancel()
	f.bus.AddForwarder(cancelOn{name: domain.EventTokenWasUsed, cancel: cancel})

	ar, err := f.actions.Redeem(ctx, service.RedeemRequest{Token: link})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	got, err := f.actions.Get(quietCtx(), ar.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusCompleted, got.Status)

	user, err := f.store.Users().GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, user.EmailVerifiedAt)
}

func TestUpdateStatusKeepsTerminalStatus(t *testing.T) {
	f := newFixture(t)

	ar, err := domain.NewActionRequest("ar-1", domain.ActionEmailVerification, nil, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.actions.ActionRequests.SaveActionRequest(quietCtx(), ar))

	require.NoError(t, f.actions.UpdateStatus(quietCtx(), "ar-1", domain.ActionStatusCompleted))
	err = f.actions.UpdateStatus(quietCtx(), "ar-1", domain.ActionStatusFailed)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.actions.Get(quietCtx(), "ar-1")
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusCompleted, got.Status)

	_, err = f.actions.Get(quietCtx(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
