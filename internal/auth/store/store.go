package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrAlreadyUsed is returned when a token's used_at was already set, or the
	// token vanished, by the time MarkTokenUsed ran.
	ErrAlreadyUsed = errors.New("store: token already used")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to actively stop people from accidently doing transactions
// within transactions.
type Store interface {
	Users() Users
	Credentials() Credentials
	Tokens() Tokens
	TokenHashes() TokenHashes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh
	// rotation). The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Prefer it over Tx, it handles commit/rollback.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying connection pool.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Credential is what a credential lookup resolves an email to.
type Credential struct {
	UserID       string
	PasswordHash string
	Roles        []string
}

// Credentials is the credential store consulted by token issuance.
type Credentials interface {
	// LookupCredentials resolves an email to a credential. When roles is not
	// empty the user must hold at least one of them, otherwise ErrNotFound.
	LookupCredentials(ctx context.Context, email string, roles []string) (Credential, error)
}

type Users interface {
	// CreateUser inserts u (id is provided by the app via ULID). A taken
	// email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u *domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (*domain.User, error)

	// GetUserByEmail looks up by the current (verified or not) email.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetUsersByIDs returns the users that exist, in no particular order.
	GetUsersByIDs(ctx context.Context, ids []string) ([]*domain.User, error)

	// UpdateUser persists every mutable field of u and bumps updated_at.
	UpdateUser(ctx context.Context, u *domain.User) error
}

type Tokens interface {
	// CreateToken stores a new token record. Only the fingerprint of the raw
	// secret is ever persisted.
	CreateToken(ctx context.Context, t *domain.Token) error

	// GetTokenByHash returns the token by its SHA-256 fingerprint, used or not.
	GetTokenByHash(ctx context.Context, hash string) (*domain.Token, error)

	// GetTokenByID returns the token by id.
	GetTokenByID(ctx context.Context, id string) (*domain.Token, error)

	// MarkTokenUsed sets used_at only if it is still unset. Losing that
	// compare-and-set yields ErrAlreadyUsed.
	MarkTokenUsed(ctx context.Context, id string, usedAt time.Time) error

	// DeleteFamily deletes every token whose root is rootID.
	DeleteFamily(ctx context.Context, rootID string) (int64, error)

	// DeleteFamiliesExcept deletes every LOGIN family of userID other than
	// keepRootID. An empty keepRootID deletes all of them.
	DeleteFamiliesExcept(ctx context.Context, userID, keepRootID string) (int64, error)

	// DeleteExpiredTokens deletes every family whose tokens have all
	// expired by now. Families with a live token are kept whole.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenHashes maps a token fingerprint back to its raw secret for
// out-of-band delivery.
type TokenHashes interface {
	// PutTokenHash stores (or replaces) the raw secret behind hash until
	// expiresAt.
	PutTokenHash(ctx context.Context, hash, raw string, expiresAt time.Time) error

	// GetTokenHash returns the raw secret, ErrNotFound when absent or expired.
	GetTokenHash(ctx context.Context, hash string, now time.Time) (string, error)

	// DeleteTokenHash drops the mapping once the token has been redeemed.
	DeleteTokenHash(ctx context.Context, hash string) error

	// DeleteExpiredTokenHashes is housekeeping.
	DeleteExpiredTokenHashes(ctx context.Context, now time.Time) (int64, error)
}

// ActionRequests is the ephemeral store for action requests. Entries expire
// on their own and nothing here is durable.
type ActionRequests interface {
	// SaveActionRequest writes ar, resetting its time to live.
	SaveActionRequest(ctx context.Context, ar *domain.ActionRequest) error

	// GetActionRequest returns ErrNotFound for unknown or expired ids.
	GetActionRequest(ctx context.Context, id string) (*domain.ActionRequest, error)
}
