package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/store"
)

type tokenHashesRepo struct {
	db dbtx
}

func (r *tokenHashesRepo) PutTokenHash(ctx context.Context, hash, raw string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO token_hashes (hash, raw, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (hash) DO UPDATE SET raw = excluded.raw, expires_at = excluded.expires_at`,
		hash, raw, expiresAt.UTC(),
	)
	return err
}

func (r *tokenHashesRepo) GetTokenHash(ctx context.Context, hash string, now time.Time) (string, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT raw FROM token_hashes WHERE hash = ? AND expires_at > ?`, hash, now.UTC(),
	).Scan(&raw)
	if err != nil {
		return "", mapNotFound(err)
	}
	return raw, nil
}

func (r *tokenHashesRepo) DeleteTokenHash(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM token_hashes WHERE hash = ?`, hash)
	return err
}

func (r *tokenHashesRepo) DeleteExpiredTokenHashes(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `DELETE FROM token_hashes WHERE expires_at <= ?`, now.UTC()))
}

var _ store.TokenHashes = (*tokenHashesRepo)(nil)
