package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/sqlite"
)

var t0 = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s store.Store, id, email string, roles ...string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(id, email, "hash-"+id, roles, t0)
	require.NoError(t, err)
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func seedToken(t *testing.T, s store.Store, id, root, userID string, typ domain.TokenType, ttl time.Duration) *domain.Token {
	t.Helper()
	tok, err := domain.NewToken(domain.NewTokenParams{
		ID:          id,
		TokenHash:   "hash-" + id,
		UserID:      userID,
		RootTokenID: root,
		Type:        typ,
		TTL:         ttl,
		Now:         t0,
	})
	require.NoError(t, err)
	require.NoError(t, s.Tokens().CreateToken(context.Background(), tok))
	return tok
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestUsersRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "u1", "a@example.com")

	got, err := s.Users().GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "a@example.com", got.PendingEmail)
	require.Nil(t, got.EmailVerifiedAt)
	require.Equal(t, []string{domain.RoleUser}, got.Roles)
	require.True(t, t0.Equal(got.CreatedAt))

	dup, err := domain.NewUser("u2", "a@example.com", "h", nil, t0)
	require.NoError(t, err)
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	require.True(t, got.VerifyEmail("a@example.com", t0.Add(time.Hour)))
	require.NoError(t, s.Users().UpdateUser(ctx, got))

	again, err := s.Users().GetUserByID(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, again.PendingEmail)
	require.NotNil(t, again.EmailVerifiedAt)
	require.True(t, t0.Add(time.Hour).Equal(*again.EmailVerifiedAt))

	_, err = s.Users().GetUserByID(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)

	ghost, err := domain.NewUser("ghost", "g@example.com", "h", nil, t0)
	require.NoError(t, err)
	require.ErrorIs(t, s.Users().UpdateUser(ctx, ghost), store.ErrNotFound)
}

func TestGetUsersByIDs(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "a@example.com")
	seedUser(t, s, "u2", "b@example.com")

	users, err := s.Users().GetUsersByIDs(context.Background(), []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	require.Len(t, users, 2)

	none, err := s.Users().GetUsersByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestLookupCredentialsRoleFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "user@example.com")
	seedUser(t, s, "a1", "admin@example.com", domain.RoleAdmin, domain.RoleUser)

	c, err := s.Credentials().LookupCredentials(ctx, "user@example.com", nil)
	require.NoError(t, err)
	require.Equal(t, "u1", c.UserID)
	require.Equal(t, "hash-u1", c.PasswordHash)

	_, err = s.Credentials().LookupCredentials(ctx, "user@example.com", []string{domain.RoleAdmin})
	require.ErrorIs(t, err, store.ErrNotFound)

	c, err = s.Credentials().LookupCredentials(ctx, "admin@example.com", []string{domain.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, "a1", c.UserID)

	_, err = s.Credentials().LookupCredentials(ctx, "nobody@example.com", nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMarkTokenUsedIsCompareAndSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	seedToken(t, s, "r0", "r0", "u1", domain.TokenTypeLogin, time.Hour)

	require.NoError(t, s.Tokens().MarkTokenUsed(ctx, "r0", t0.Add(time.Minute)))
	require.ErrorIs(t, s.Tokens().MarkTokenUsed(ctx, "r0", t0.Add(2*time.Minute)), store.ErrAlreadyUsed)
	require.ErrorIs(t, s.Tokens().MarkTokenUsed(ctx, "missing", t0), store.ErrAlreadyUsed)

	got, err := s.Tokens().GetTokenByHash(ctx, "hash-r0")
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)
	require.True(t, t0.Add(time.Minute).Equal(*got.UsedAt), "first writer wins")
}

func TestMarkTokenUsedConcurrently(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "a@example.com")
	seedToken(t, s, "r0", "r0", "u1", domain.TokenTypeLogin, time.Hour)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(context.Background(), func(tx store.Tx) error {
				return tx.Tokens().MarkTokenUsed(context.Background(), "r0", time.Now())
			})
			if err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, winners.Load())
}

func TestDeleteFamily(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	seedToken(t, s, "r0", "r0", "u1", domain.TokenTypeLogin, time.Hour)
	seedToken(t, s, "r1", "r0", "u1", domain.TokenTypeLogin, time.Hour)
	seedToken(t, s, "r2", "r0", "u1", domain.TokenTypeLogin, time.Hour)
	seedToken(t, s, "x0", "x0", "u1", domain.TokenTypeLogin, time.Hour)

	n, err := s.Tokens().DeleteFamily(ctx, "r0")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	for _, id := range []string{"r0", "r1", "r2"} {
		_, err := s.Tokens().GetTokenByID(ctx, id)
		require.ErrorIs(t, err, store.ErrNotFound)
	}
	_, err = s.Tokens().GetTokenByID(ctx, "x0")
	require.NoError(t, err)

	n, err = s.Tokens().DeleteFamily(ctx, "r0")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteFamiliesExcept(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	seedUser(t, s, "u2", "b@example.com")
	seedToken(t, s, "a0", "a0", "u1", domain.TokenTypeLogin, time.Hour)
	seedToken(t, s, "a1", "a0", "u1", domain.TokenTypeLogin, time.Hour)
	seedToken(t, s, "b0", "b0", "u1", domain.TokenTypeLogin, time.Hour)
	seedToken(t, s, "v0", "v0", "u1", domain.TokenTypeEmailVerification, time.Hour)
	seedToken(t, s, "o0", "o0", "u2", domain.TokenTypeLogin, time.Hour)

	n, err := s.Tokens().DeleteFamiliesExcept(ctx, "u1", "b0")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	for id, exists := range map[string]bool{"a0": false, "a1": false, "b0": true, "v0": true, "o0": true} {
		_, err := s.Tokens().GetTokenByID(ctx, id)
		if exists {
			require.NoError(t, err, id)
		} else {
			require.ErrorIs(t, err, store.ErrNotFound, id)
		}
	}

	n, err = s.Tokens().DeleteFamiliesExcept(ctx, "u1", "")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestDeleteExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	seedToken(t, s, "short", "short", "u1", domain.TokenTypeLogin, time.Minute)
	seedToken(t, s, "long", "long", "u1", domain.TokenTypeLogin, time.Hour)

	// Expired parent with a live child: the family stays whole
	seedToken(t, s, "f0", "f0", "u1", domain.TokenTypeLogin, time.Minute)
	seedToken(t, s, "f1", "f0", "u1", domain.TokenTypeLogin, time.Hour)

	require.NoError(t, s.TokenHashes().PutTokenHash(ctx, "h-short", "raw-short", t0.Add(time.Minute)))
	require.NoError(t, s.TokenHashes().PutTokenHash(ctx, "h-long", "raw-long", t0.Add(time.Hour)))

	now := t0.Add(10 * time.Minute)
	n, err := s.Tokens().DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.TokenHashes().GetTokenHash(ctx, "h-short", now)
	require.ErrorIs(t, err, store.ErrNotFound, "expired mapping is invisible before the sweep")

	n, err = s.TokenHashes().DeleteExpiredTokenHashes(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	raw, err := s.TokenHashes().GetTokenHash(ctx, "h-long", now)
	require.NoError(t, err)
	require.Equal(t, "raw-long", raw)

	for _, id := range []string{"long", "f0", "f1"} {
		_, err := s.Tokens().GetTokenByID(ctx, id)
		require.NoError(t, err, id)
	}

	// Once the child expires too, the family goes in one sweep
	n, err = s.Tokens().DeleteExpiredTokens(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestTokenHashesPutOverwritesAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.TokenHashes().PutTokenHash(ctx, "h", "one", t0.Add(time.Hour)))
	require.NoError(t, s.TokenHashes().PutTokenHash(ctx, "h", "two", t0.Add(time.Hour)))

	raw, err := s.TokenHashes().GetTokenHash(ctx, "h", t0)
	require.NoError(t, err)
	require.Equal(t, "two", raw)

	require.NoError(t, s.TokenHashes().DeleteTokenHash(ctx, "h"))
	_, err = s.TokenHashes().GetTokenHash(ctx, "h", t0)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		tok, err := domain.NewToken(domain.NewTokenParams{
			ID: "t1", TokenHash: "h1", UserID: "u1", RootTokenID: "t1",
			Type: domain.TokenTypeLogin, TTL: time.Hour, Now: t0,
		})
		require.NoError(t, err)
		require.NoError(t, tx.Tokens().CreateToken(ctx, tok))
		return store.ErrAlreadyUsed
	})
	require.ErrorIs(t, err, store.ErrAlreadyUsed)

	_, err = s.Tokens().GetTokenByID(ctx, "t1")
	require.ErrorIs(t, err, store.ErrNotFound)
}
