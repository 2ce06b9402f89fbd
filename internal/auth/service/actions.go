package service

import (
	"context"
	"crypto/subtle"
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

// ActionService turns redeemed action tokens into ActionRequests and owns
// their status updates.
type ActionService struct {
	Store          store.Store
	ActionRequests store.ActionRequests
	Bus            *events.Bus
	Hasher         cryptox.PasswordHasher
	Verifier       jwtx.Verifier
	Now            func() time.Time
}

// RedeemRequest carries a signed action token. Password is required for
// PASSWORD_RESET and ignored otherwise.
type RedeemRequest struct {
	Token    string
	Password string
}

// Redeem consumes the token behind a signed action token and starts an
// ActionRequest in PROCESSING. The actual mutation happens in a saga, so a
// successful return says nothing about its outcome.
func (s *ActionService) Redeem(ctx context.Context, req RedeemRequest) (*domain.ActionRequest, error) {
	l := slogx.FromContext(ctx)
	now := nowOrDefault(s.Now)

	claims, err := s.Verifier.VerifyAction(req.Token)
	if err != nil {
		l.Info("action token rejected", slog.Any("err", err))
		return nil, domain.ErrAuthFailure
	}

	action := domain.ActionType(claims.Action)
	typ, ok := action.TokenType()
	if !ok {
		return nil, domain.ErrAuthFailure
	}

	tok, err := s.Store.Tokens().GetTokenByID(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrAuthFailure
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	hash := cryptox.FingerprintToken(claims.Secret)
	if tok.Type != typ || subtle.ConstantTimeCompare([]byte(hash), []byte(tok.TokenHash)) != 1 {
		return nil, domain.ErrAuthFailure
	}
	if !tok.IsValidFor(claims.Subject, now) {
		return nil, domain.ErrAuthFailure
	}

	data := map[string]any{}
	if len(claims.Data) > 0 {
		if err := json.Unmarshal(claims.Data, &data); err != nil {
			return nil, domain.ErrAuthFailure
		}
	}
	data["userId"] = tok.UserID

	// Validate what we can before the token is spent.
	if action == domain.ActionPasswordReset {
		if err := validatePassword(req.Password); err != nil {
			return nil, err
		}
		passwordHash, err := s.Hasher.Hash(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		data["password"] = passwordHash
	}

	if err := tok.Use(now); err != nil {
		return nil, domain.ErrAuthFailure
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().MarkTokenUsed(ctx, tok.ID, *tok.UsedAt); err != nil {
			return err
		}
		return tx.TokenHashes().DeleteTokenHash(ctx, tok.TokenHash)
	})
	if errors.Is(err, store.ErrAlreadyUsed) {
		return nil, domain.ErrAuthFailure
	}
	if err != nil {
		return nil, fmt.Errorf("consume token: %w", err)
	}

	// The token is spent; the request must now reach a terminal status even
	// if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	ar, err := domain.NewActionRequest(idx.NewAt(now).String(), action, data, now)
	if err != nil {
		return nil, err
	}
	if err := s.ActionRequests.SaveActionRequest(ctx, ar); err != nil {
		return nil, fmt.Errorf("save action request: %w", err)
	}

	// Copy the response view before sagas get a chance to move the request on.
	resp := *ar
	resp.Recorder = domain.Recorder{}

	l.Info("action token redeemed",
		slog.String("action_request_id", ar.ID),
		slog.String("action", string(action)),
		slog.String("token_id", tok.ID),
	)
	s.Bus.PublishFrom(ctx, tok, ar)
	return &resp, nil
}

// UpdateStatus moves an ActionRequest to status. The password hash carried by
// a reset request is dropped once the request is terminal.
func (s *ActionService) UpdateStatus(ctx context.Context, id string, status domain.ActionStatus) error {
	ar, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := ar.TransitionTo(status, nowOrDefault(s.Now)); err != nil {
		return err
	}
	if ar.Status.IsTerminal() {
		delete(ar.Data, "password")
	}
	if err := s.ActionRequests.SaveActionRequest(ctx, ar); err != nil {
		return fmt.Errorf("save action request: %w", err)
	}

	slogx.FromContext(ctx).Info("action request updated",
		slog.String("action_request_id", ar.ID),
		slog.String("status", string(ar.Status)),
	)
	s.Bus.PublishFrom(ctx, ar)
	return nil
}

// Get returns the ActionRequest id.
func (s *ActionService) Get(ctx context.Context, id string) (*domain.ActionRequest, error) {
	ar, err := s.ActionRequests.GetActionRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load action request: %w", err)
	}
	return ar, nil
}
