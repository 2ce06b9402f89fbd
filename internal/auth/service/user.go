package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/cache"
	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/events"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/idx"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// UserService holds the user commands the action sagas rely on, plus the
// cached user read model.
type UserService struct {
	Store   store.Store
	Bus     *events.Bus
	Hasher  cryptox.PasswordHasher
	Cache   *cache.Versioned[domain.UserDTO]
	Actions *ActionTokenIssuer
	Now     func() time.Time
}

// NewUserCache builds the versioned read-model cache for users.
func NewUserCache(b cache.Backend, ttl time.Duration) *cache.Versioned[domain.UserDTO] {
	return cache.NewVersioned(b, "User", 1,
		func(u *domain.UserDTO) string { return u.ID },
		cache.WithDefaultTTL(ttl),
	)
}

func emailAlias(email string) string { return "email:" + email }

// Register creates an unverified user and sends the first verification link.
func (s *UserService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := nowOrDefault(s.Now)
	u, err := domain.NewUser(idx.NewAt(now).String(), email, hash, nil, now)
	if err != nil {
		return nil, err
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: email already in use", domain.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.refresh(ctx, u)
	s.Bus.PublishFrom(ctx, u)
	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", u.ID))

	// The account exists either way; a failed link can be resent.
	if _, err := s.Actions.IssueEmailVerification(ctx, u.ID); err != nil {
		slogx.FromContext(ctx).Error("issue verification failed", slog.String("user_id", u.ID), slog.Any("err", err))
	}
	return u, nil
}

// RequestEmailChange sets a new pending address for userID and sends a
// verification link to it. The actor must be the user or an admin.
func (s *UserService) RequestEmailChange(ctx context.Context, userID, email string) error {
	actor, ok := domain.ActorFromContext(ctx)
	if !ok || !actor.CanManage(userID) {
		return domain.ErrForbidden
	}

	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.RequestEmailChange(email, nowOrDefault(s.Now)); err != nil {
		return err
	}

	other, err := s.Store.Users().GetUserByEmail(ctx, u.PendingEmail)
	switch {
	case err == nil && other.ID != u.ID:
		return fmt.Errorf("%w: email already in use", domain.ErrConflict)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("lookup email: %w", err)
	}

	if err := s.Store.Users().UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	s.refresh(ctx, u)
	s.Bus.PublishFrom(ctx, u)

	_, err = s.Actions.IssueEmailVerification(ctx, u.ID)
	return err
}

// VerifyEmail promotes email to the user's address when it is still the
// pending one. A stale address leaves the user untouched and is not an error.
func (s *UserService) VerifyEmail(ctx context.Context, userID, email string) error {
	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	if !u.VerifyEmail(email, nowOrDefault(s.Now)) {
		slogx.FromContext(ctx).Info("stale email verification ignored", slog.String("user_id", userID))
		return nil
	}

	if err := s.Store.Users().UpdateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("%w: email already in use", domain.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	s.refresh(ctx, u)
	s.Bus.PublishFrom(ctx, u)
	return nil
}

// ResetPassword stores a new password hash and revokes every refresh family
// of the user.
func (s *UserService) ResetPassword(ctx context.Context, userID, passwordHash string) error {
	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.ResetPassword(passwordHash, nowOrDefault(s.Now)); err != nil {
		return err
	}

	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return err
		}
		revoked, err = tx.Tokens().DeleteFamiliesExcept(ctx, u.ID, "")
		return err
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.refresh(ctx, u)
	s.Bus.PublishFrom(ctx, u)
	slogx.FromContext(ctx).Info("password reset",
		slog.String("user_id", u.ID),
		slog.Int64("revoked_tokens", revoked),
	)
	return nil
}

// GetUser reads through the cache.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.UserDTO, error) {
	if dto, err := s.Cache.Get(ctx, id); err == nil {
		return dto, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		slogx.FromContext(ctx).Warn("user cache read failed", slog.Any("err", err))
	}

	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, u)
	dto := u.DTO()
	return &dto, nil
}

// GetUserByEmail resolves email through its cache alias. An alias left behind
// by an email change is detected and bypassed.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*domain.UserDTO, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if dto, err := s.Cache.Get(ctx, emailAlias(email)); err == nil && dto.Email == email {
		return dto, nil
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	s.refresh(ctx, u)
	dto := u.DTO()
	return &dto, nil
}

// GetUsers returns the users among ids that exist, in the order asked for.
// Cache misses are loaded from the store in one query.
func (s *UserService) GetUsers(ctx context.Context, ids []string) ([]domain.UserDTO, error) {
	cached, err := s.Cache.GetMany(ctx, ids)
	if err != nil {
		slogx.FromContext(ctx).Warn("user cache read failed", slog.Any("err", err))
		cached = make([]*domain.UserDTO, len(ids))
	}

	var missing []string
	for i, dto := range cached {
		if dto == nil {
			missing = append(missing, ids[i])
		}
	}

	loaded := make(map[string]domain.UserDTO, len(missing))
	if len(missing) > 0 {
		users, err := s.Store.Users().GetUsersByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		for _, u := range users {
			s.refresh(ctx, u)
			loaded[u.ID] = u.DTO()
		}
	}

	out := make([]domain.UserDTO, 0, len(ids))
	for i, id := range ids {
		if cached[i] != nil {
			out = append(out, *cached[i])
		} else if dto, ok := loaded[id]; ok {
			out = append(out, dto)
		}
	}
	return out, nil
}

func (s *UserService) load(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// refresh writes the read model of u and its email alias. Cache failures
// only cost a future miss.
func (s *UserService) refresh(ctx context.Context, u *domain.User) {
	dto := u.DTO()
	if err := s.Cache.Set(ctx, &dto); err != nil {
		slogx.FromContext(ctx).Warn("user cache write failed", slog.String("user_id", u.ID), slog.Any("err", err))
		return
	}
	if err := s.Cache.SetAlias(ctx, emailAlias(u.Email), u.ID, 0); err != nil {
		slogx.FromContext(ctx).Warn("user cache alias write failed", slog.String("user_id", u.ID), slog.Any("err", err))
	}
}
