package sqlite

import (
	"context"
	"database/sql"
	"slices"
	"strings"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, pending_email, email_verified_at, password_hash, roles, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u          domain.User
		pending    sql.NullString
		verifiedAt sql.NullTime
		roles      string
	)
	err := row.Scan(&u.ID, &u.Email, &pending, &verifiedAt, &u.PasswordHash, &roles, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.PendingEmail = mapNullString(pending)
	u.EmailVerifiedAt = mapNullTimePtr(verifiedAt)
	u.Roles = splitRoles(roles)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, mapStringNull(u.PendingEmail), mapOptionalTime(u.EmailVerifiedAt),
		u.PasswordHash, joinRoles(u.Roles), u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUsersByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, pending_email = ?, email_verified_at = ?, password_hash = ?, roles = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, mapStringNull(u.PendingEmail), mapOptionalTime(u.EmailVerifiedAt),
		u.PasswordHash, joinRoles(u.Roles), u.UpdatedAt.UTC(), u.ID,
	)
	if err != nil {
		return mapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) LookupCredentials(ctx context.Context, email string, roles []string) (store.Credential, error) {
	var (
		c        store.Credential
		rawRoles string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, password_hash, roles FROM users WHERE email = ?`, email,
	).Scan(&c.UserID, &c.PasswordHash, &rawRoles)
	if err != nil {
		return store.Credential{}, mapNotFound(err)
	}
	c.Roles = splitRoles(rawRoles)

	if len(roles) > 0 && !slices.ContainsFunc(c.Roles, func(r string) bool { return slices.Contains(roles, r) }) {
		return store.Credential{}, store.ErrNotFound
	}
	return c, nil
}

// compile-time checks
var (
	_ store.Users       = (*usersRepo)(nil)
	_ store.Credentials = (*usersRepo)(nil)
)
