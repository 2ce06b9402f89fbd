package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
)

type tokensRepo struct {
	db dbtx
}

const tokenColumns = `id, token_hash, user_id, root_token_id, type, created_at, expires_at, used_at`

func scanToken(row interface{ Scan(...any) error }) (*domain.Token, error) {
	var (
		t      domain.Token
		typ    string
		usedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.TokenHash, &t.UserID, &t.RootTokenID, &typ, &t.CreatedAt, &t.ExpiresAt, &usedAt)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TokenType(typ)
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.UsedAt = mapNullTimePtr(usedAt)
	return &t, nil
}

func (r *tokensRepo) CreateToken(ctx context.Context, t *domain.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TokenHash, t.UserID, t.RootTokenID, string(t.Type),
		t.CreatedAt.UTC(), t.ExpiresAt.UTC(), mapOptionalTime(t.UsedAt),
	)
	return mapConstraint(err)
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, hash string) (*domain.Token, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_hash = ?`, hash))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return t, nil
}

func (r *tokensRepo) GetTokenByID(ctx context.Context, id string) (*domain.Token, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = ?`, id))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return t, nil
}

func (r *tokensRepo) MarkTokenUsed(ctx context.Context, id string, usedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		usedAt.UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyUsed
	}
	return nil
}

func (r *tokensRepo) DeleteFamily(ctx context.Context, rootID string) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `DELETE FROM tokens WHERE root_token_id = ?`, rootID))
}

func (r *tokensRepo) DeleteFamiliesExcept(ctx context.Context, userID, keepRootID string) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE user_id = ? AND type = ? AND root_token_id <> ?`,
		userID, string(domain.TokenTypeLogin), keepRootID,
	))
}

// DeleteExpiredTokens removes whole families once their last token has
// expired. A spent token with live descendants has to stay, or replaying it
// would no longer be recognised as reuse.
func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		DELETE FROM tokens
		WHERE root_token_id IN (
			SELECT root_token_id FROM tokens
			GROUP BY root_token_id
			HAVING MAX(expires_at) <= ?
		)`, now.UTC()))
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ store.Tokens = (*tokensRepo)(nil)
