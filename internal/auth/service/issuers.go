package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/events"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/idx"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// ActionTokenIssuer mints PASSWORD_RESET and EMAIL_VERIFICATION tokens. Each
// comes with a signed action token that is the thing actually delivered to
// the user; the raw secret is kept in the hash repository so the link can be
// rebuilt and resent.
type ActionTokenIssuer struct {
	Store      store.Store
	Bus        *events.Bus
	KeyManager *jwtx.KeyManager
	Issuer     string
	TTLs       TokenTTLs
	Now        func() time.Time
}

// IssuePasswordReset issues a reset token for email. An unknown address is
// not an error: nothing is issued and nil is returned, so callers cannot tell
// the two apart.
func (s *ActionTokenIssuer) IssuePasswordReset(ctx context.Context, email string) (*domain.IssuedToken, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Info("password reset requested for unknown email")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	data := map[string]any{"userId": u.ID}
	return s.issue(ctx, u.ID, u.Email, domain.ActionPasswordReset, data)
}

// IssueEmailVerification issues a verification token for the pending email
// of userID.
func (s *ActionTokenIssuer) IssueEmailVerification(ctx context.Context, userID string) (*domain.IssuedToken, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u.PendingEmail == "" {
		return nil, fmt.Errorf("%w: no pending email to verify", domain.ErrValidation)
	}

	data := map[string]any{"userId": u.ID, "email": u.PendingEmail}
	return s.issue(ctx, u.ID, u.PendingEmail, domain.ActionEmailVerification, data)
}

// Resend re-derives the signed link of a still-valid, unused action token and
// announces it again. The token itself is unchanged.
func (s *ActionTokenIssuer) Resend(ctx context.Context, tokenID string) (*domain.IssuedToken, error) {
	now := nowOrDefault(s.Now)

	tok, err := s.Store.Tokens().GetTokenByID(ctx, tokenID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if tok.Type == domain.TokenTypeLogin || tok.IsUsed() || tok.IsExpired(now) {
		return nil, domain.ErrNotFound
	}

	secret, err := s.Store.TokenHashes().GetTokenHash(ctx, tok.TokenHash, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token hash: %w", err)
	}

	u, err := s.Store.Users().GetUserByID(ctx, tok.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	var (
		action domain.ActionType
		email  string
		data   = map[string]any{"userId": u.ID}
	)
	switch tok.Type {
	case domain.TokenTypePasswordReset:
		action, email = domain.ActionPasswordReset, u.Email
	case domain.TokenTypeEmailVerification:
		if u.PendingEmail == "" {
			return nil, domain.ErrNotFound
		}
		action, email = domain.ActionEmailVerification, u.PendingEmail
		data["email"] = u.PendingEmail
	}

	signed, err := s.sign(tok.ID, u.ID, action, data, secret, now, tok.ExpiresAt)
	if err != nil {
		return nil, err
	}

	tok.Reannounce(email, signed, now)
	s.Bus.PublishFrom(ctx, tok)

	slogx.FromContext(ctx).Info("action token resent",
		slog.String("token_id", tok.ID),
		slog.String("type", string(tok.Type)),
	)
	return &domain.IssuedToken{Secret: secret, Signed: signed, Token: tok}, nil
}

func (s *ActionTokenIssuer) issue(ctx context.Context, userID, email string, action domain.ActionType, data map[string]any) (*domain.IssuedToken, error) {
	typ, _ := action.TokenType()
	now := nowOrDefault(s.Now)
	ttl := s.TTLs.For(typ)
	id := idx.NewAt(now).String()

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	signed, err := s.sign(id, userID, action, data, secret, now, now.Add(ttl))
	if err != nil {
		return nil, err
	}

	tok, err := domain.NewToken(domain.NewTokenParams{
		ID:          id,
		TokenHash:   cryptox.FingerprintToken(secret),
		UserID:      userID,
		RootTokenID: id,
		Type:        typ,
		TTL:         ttl,
		Now:         now,
		Email:       email,
		Deliverable: signed,
	})
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().CreateToken(ctx, tok); err != nil {
			return err
		}
		return tx.TokenHashes().PutTokenHash(ctx, tok.TokenHash, secret, tok.ExpiresAt)
	})
	if err != nil {
		return nil, fmt.Errorf("persist %s token: %w", typ, err)
	}

	s.Bus.PublishFrom(ctx, tok)

	slogx.FromContext(ctx).Info("action token issued",
		slog.String("token_id", tok.ID),
		slog.String("user_id", userID),
		slog.String("type", string(typ)),
	)
	return &domain.IssuedToken{Secret: secret, Signed: signed, Token: tok}, nil
}

func (s *ActionTokenIssuer) sign(tokenID, userID string, action domain.ActionType, data map[string]any, secret string, now, expiresAt time.Time) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode action data: %w", err)
	}
	signer := s.KeyManager.GetSigner()
	if signer == nil {
		return "", errors.New("no signing key available")
	}
	claims := jwtx.NewActionClaims(tokenID, userID, string(action), payload, secret, s.Issuer, now, expiresAt)
	signed, err := signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign action token: %w", err)
	}
	return signed, nil
}
