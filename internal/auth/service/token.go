package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/events"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/idx"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// TokenService issues LOGIN tokens from a password or a refresh token and
// rotates refresh chains.
//
// Every LOGIN token belongs to a family rooted at the token a password login
// created. Each rotation spends the presented token and mints a child with the
// same root. Presenting a spent token again means the secret leaked, so the
// whole family is deleted and the caller gets the same generic failure as for
// a wrong password.
type TokenService struct {
	Store      store.Store
	Bus        *events.Bus
	Hasher     cryptox.PasswordHasher
	KeyManager *jwtx.KeyManager
	Issuer     string
	TTLs       TokenTTLs

	// RoleFilter restricts credential lookups when a request sets none.
	RoleFilter []string

	Now func() time.Time
}

// IssueRequest carries one credential exchange. Exactly one of Password or
// RefreshToken is expected; when both are set the refresh token wins.
type IssueRequest struct {
	NewID        string
	Email        string
	Password     string
	RefreshToken string
	RoleFilter   []string
}

// Issue returns a fresh LOGIN token and its raw secret. Every credential
// problem is reported as domain.ErrAuthFailure.
func (s *TokenService) Issue(ctx context.Context, req IssueRequest) (*domain.IssuedToken, error) {
	issued, _, err := s.issue(ctx, req)
	return issued, err
}

// Exchange runs Issue and signs an access token for the new refresh token.
func (s *TokenService) Exchange(ctx context.Context, req IssueRequest) (*domain.TokenPair, error) {
	issued, cred, err := s.issue(ctx, req)
	if err != nil {
		return nil, err
	}

	// Access tokens carry the family root as sid so a revoked family can be
	// traced back from any access token it minted.
	signer := s.KeyManager.GetSigner()
	if signer == nil {
		return nil, errors.New("no signing key available")
	}

	now := issued.Token.CreatedAt
	claims := jwtx.NewAccessClaims(cred.UserID, issued.Token.RootTokenID, cred.Roles, s.TTLs.Access, s.Issuer, now)
	access, err := signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: issued.Secret,
		TokenType:    "Bearer",
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// issue runs the rotation algorithm and returns the credential it resolved so
// Exchange can stamp roles on the access token.
func (s *TokenService) issue(ctx context.Context, req IssueRequest) (*domain.IssuedToken, store.Credential, error) {
	l := slogx.FromContext(ctx)
	now := nowOrDefault(s.Now)

	newID := req.NewID
	if newID == "" {
		newID = idx.NewAt(now).String()
	}
	roles := req.RoleFilter
	if len(roles) == 0 {
		roles = s.RoleFilter
	}

	// 1. Resolve the credential. A missing user costs the same as a wrong password.
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		s.burnPasswordCheck(req.Password)
		return nil, store.Credential{}, domain.ErrAuthFailure
	}
	cred, err := s.Store.Credentials().LookupCredentials(ctx, email, roles)
	if errors.Is(err, store.ErrNotFound) {
		s.burnPasswordCheck(req.Password)
		l.Info("credential lookup failed")
		return nil, store.Credential{}, domain.ErrAuthFailure
	}
	if err != nil {
		return nil, store.Credential{}, fmt.Errorf("lookup credentials: %w", err)
	}

	// 2. Refresh path, 3. password path.
	var parent *domain.Token
	rootID := newID
	switch {
	case req.RefreshToken != "":
		parent, err = s.redeemRefresh(ctx, cred.UserID, req.RefreshToken, now)
		if err != nil {
			return nil, store.Credential{}, err
		}
		rootID = parent.RootTokenID

	case req.Password != "":
		if err := s.Hasher.Verify(req.Password, cred.PasswordHash); err != nil {
			l.Info("password verification failed", slog.String("user_id", cred.UserID))
			return nil, store.Credential{}, domain.ErrAuthFailure
		}

	default:
		return nil, store.Credential{}, domain.ErrAuthFailure
	}

	// 4. Mint the child (or the root of a new family). The raw secret only
	// ever leaves through the return value and the creation event.
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, store.Credential{}, err
	}
	tok, err := domain.NewToken(domain.NewTokenParams{
		ID:          newID,
		TokenHash:   cryptox.FingerprintToken(secret),
		UserID:      cred.UserID,
		RootTokenID: rootID,
		Type:        domain.TokenTypeLogin,
		TTL:         s.TTLs.Login,
		Now:         now,
		Email:       email,
		Deliverable: secret,
	})
	if err != nil {
		return nil, store.Credential{}, err
	}

	// 5. Spend the parent and persist the child atomically.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if parent != nil {
			if err := tx.Tokens().MarkTokenUsed(ctx, parent.ID, *parent.UsedAt); err != nil {
				return err
			}
		}
		return tx.Tokens().CreateToken(ctx, tok)
	})
	if errors.Is(err, store.ErrAlreadyUsed) {
		// Someone redeemed the same secret between our read and write.
		s.revokeFamily(ctx, parent.RootTokenID, parent.ID)
		return nil, store.Credential{}, domain.ErrAuthFailure
	}
	if err != nil {
		return nil, store.Credential{}, fmt.Errorf("persist token: %w", err)
	}

	// 6. Announce only after the commit: TokenWasUsed for the parent, then
	// TokenWasCreated for the child.
	if parent != nil {
		s.Bus.PublishFrom(ctx, parent)
	}
	s.Bus.PublishFrom(ctx, tok)

	l.Info("token issued",
		slog.String("user_id", cred.UserID),
		slog.String("token_id", tok.ID),
		slog.String("root_token_id", tok.RootTokenID),
		slog.Bool("rotated", parent != nil),
	)
	return &domain.IssuedToken{Secret: secret, Token: tok}, cred, nil
}

// redeemRefresh validates a presented refresh secret and spends it in memory.
// The caller persists the spend with a compare-and-set.
func (s *TokenService) redeemRefresh(ctx context.Context, userID, raw string, now time.Time) (*domain.Token, error) {
	l := slogx.FromContext(ctx)

	parent, err := s.Store.Tokens().GetTokenByHash(ctx, cryptox.FingerprintToken(strings.TrimSpace(raw)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrAuthFailure
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if parent.Type != domain.TokenTypeLogin {
		return nil, domain.ErrAuthFailure
	}

	if parent.IsUsed() {
		l.Warn("refresh token reuse detected",
			slog.String("token_id", parent.ID),
			slog.String("root_token_id", parent.RootTokenID),
			slog.String("user_id", parent.UserID),
		)
		s.revokeFamily(ctx, parent.RootTokenID, parent.ID)
		return nil, domain.ErrAuthFailure
	}

	// Expired or someone else's: refuse without touching the family.
	if !parent.IsValidFor(userID, now) {
		return nil, domain.ErrAuthFailure
	}

	if err := parent.Use(now); err != nil {
		return nil, domain.ErrAuthFailure
	}
	return parent, nil
}

// revokeFamily deletes every token of a family. Failures are logged; the
// caller reports AuthFailure either way and the next replay retries.
func (s *TokenService) revokeFamily(ctx context.Context, rootID, triggeredBy string) {
	l := slogx.FromContext(ctx)
	n, err := s.Store.Tokens().DeleteFamily(ctx, rootID)
	if err != nil {
		l.Error("token family revocation failed", slog.String("root_token_id", rootID), slog.Any("err", err))
		return
	}
	l.Warn("token family revoked",
		slog.String("root_token_id", rootID),
		slog.String("triggered_by", triggeredBy),
		slog.Int64("deleted", n),
	)
}

// burnPasswordCheck spends the time of a real verification so an unknown email
// takes as long to reject as a wrong password.
func (s *TokenService) burnPasswordCheck(password string) {
	if password == "" {
		return
	}
	_ = s.Hasher.Verify(password, cryptox.DummyHash)
}
