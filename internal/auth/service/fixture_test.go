package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/internal/auth/cache"
	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/events"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

const testIssuer = "https://auth.test"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Forward(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) named(name string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// lastDeliverable returns the signed action token of the latest
// TokenWasCreated event of typ.
func (r *recorder) lastDeliverable(t *testing.T, typ domain.TokenType) string {
	t.Helper()
	created := r.named(domain.EventTokenWasCreated)
	for i := len(created) - 1; i >= 0; i-- {
		if created[i].Data["type"] == string(typ) {
			tok, ok := created[i].Data["token"].(string)
			require.True(t, ok, "no deliverable on %s event", typ)
			return tok
		}
	}
	t.Fatalf("no %s token was announced", typ)
	return ""
}

type fixture struct {
	store   *sqlite.Store
	redis   *miniredis.Miniredis
	bus     *events.Bus
	events  *recorder
	clock   *clock
	keys    *jwtx.KeyManager
	hasher  cryptox.PasswordHasher
	tokens  *service.TokenService
	issuer  *service.ActionTokenIssuer
	actions *service.ActionService
	users   *service.UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	backend := cache.NewRedisBackend(client)

	keys, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Issuer: testIssuer})
	require.NoError(t, err)

	// Signed action tokens are checked against the wall clock, so the
	// service clock starts there too.
	clk := &clock{now: time.Now().UTC()}
	hasher := cryptox.PasswordHasher{Pepper: "test-pepper"}
	bus := events.NewBus()
	rec := &recorder{}
	bus.AddForwarder(rec)

	f := &fixture{store: st, redis: mr, bus: bus, events: rec, clock: clk, keys: keys, hasher: hasher}

	f.tokens = &service.TokenService{
		Store:      st,
		Bus:        bus,
		Hasher:     hasher,
		KeyManager: keys,
		Issuer:     testIssuer,
		TTLs:       service.DefaultTokenTTLs,
		Now:        clk.Now,
	}
	f.issuer = &service.ActionTokenIssuer{
		Store:      st,
		Bus:        bus,
		KeyManager: keys,
		Issuer:     testIssuer,
		TTLs:       service.DefaultTokenTTLs,
		Now:        clk.Now,
	}
	f.actions = &service.ActionService{
		Store:          st,
		ActionRequests: redis.NewActionRequests(backend, time.Hour),
		Bus:            bus,
		Hasher:         hasher,
		Verifier:       keys.Verifier,
		Now:            clk.Now,
	}
	f.users = &service.UserService{
		Store:   st,
		Bus:     bus,
		Hasher:  hasher,
		Cache:   service.NewUserCache(backend, cache.DefaultTTL),
		Actions: f.issuer,
		Now:     clk.Now,
	}
	service.RegisterSagas(bus, f.users, f.actions)
	return f
}

func quietCtx() context.Context {
	return slogx.WithContext(context.Background(), slogx.Discard())
}

func adminCtx() context.Context {
	return domain.WithActor(quietCtx(), domain.Actor{ID: "root", Roles: []string{domain.RoleAdmin}})
}

// register creates a user and returns it together with its password.
func (f *fixture) register(t *testing.T, email string) (*domain.User, string) {
	t.Helper()
	const password = "correct horse battery"
	u, err := f.users.Register(quietCtx(), email, password)
	require.NoError(t, err)
	return u, password
}

func (f *fixture) login(t *testing.T, email, password string) *domain.IssuedToken {
	t.Helper()
	issued, err := f.tokens.Issue(quietCtx(), service.IssueRequest{Email: email, Password: password})
	require.NoError(t, err)
	return issued
}

func (f *fixture) refresh(email, secret string) (*domain.IssuedToken, error) {
	return f.tokens.Issue(quietCtx(), service.IssueRequest{Email: email, RefreshToken: secret})
}

func (f *fixture) requireGone(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := f.store.Tokens().GetTokenByID(context.Background(), id)
		require.Error(t, err, "token %s should be gone", id)
	}
}
