package domain

import (
	"fmt"
	"time"
)

type TokenType string

const (
	TokenTypeLogin             TokenType = "LOGIN"
	TokenTypePasswordReset     TokenType = "PASSWORD_RESET"
	TokenTypeEmailVerification TokenType = "EMAIL_VERIFICATION"
)

func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeLogin, TokenTypePasswordReset, TokenTypeEmailVerification:
		return true
	}
	return false
}

// Token is one issued credential. Only the fingerprint of its secret is kept.
type Token struct {
	Recorder

	ID          string
	TokenHash   string
	UserID      string
	RootTokenID string
	Type        TokenType
	CreatedAt   time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
}

// NewTokenParams describe a token about to be created. Email and Deliverable
// only travel on the creation event so a delivery channel can reach the user.
type NewTokenParams struct {
	ID          string
	TokenHash   string
	UserID      string
	RootTokenID string
	Type        TokenType
	TTL         time.Duration
	Now         time.Time

	Email       string
	Deliverable string
}

// NewToken creates a token and raises TokenWasCreated.
func NewToken(p NewTokenParams) (*Token, error) {
	if p.ID == "" || p.TokenHash == "" || p.UserID == "" || p.RootTokenID == "" {
		return nil, fmt.Errorf("%w: token id, hash, user and root are required", ErrValidation)
	}
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrValidation, p.Type)
	}
	if p.TTL <= 0 {
		return nil, fmt.Errorf("%w: token ttl must be positive", ErrValidation)
	}

	now := p.Now.UTC()
	t := &Token{
		ID:          p.ID,
		TokenHash:   p.TokenHash,
		UserID:      p.UserID,
		RootTokenID: p.RootTokenID,
		Type:        p.Type,
		CreatedAt:   now,
		ExpiresAt:   now.Add(p.TTL),
	}

	t.announce(p.Email, p.Deliverable, now)
	return t, nil
}

// Reannounce raises TokenWasCreated again so the deliverable can be resent.
func (t *Token) Reannounce(email, deliverable string, now time.Time) {
	t.announce(email, deliverable, now.UTC())
}

func (t *Token) announce(email, deliverable string, now time.Time) {
	data := map[string]any{
		"id":        t.ID,
		"userId":    t.UserID,
		"createdAt": t.CreatedAt,
		"expiresAt": t.ExpiresAt,
		"type":      string(t.Type),
	}
	if email != "" {
		data["email"] = email
	}
	if deliverable != "" {
		data["token"] = deliverable
	}
	t.record(Event{
		Name:       EventTokenWasCreated,
		EntityID:   t.ID,
		OccurredAt: now,
		Data:       data,
	})
}

func (t *Token) IsUsed() bool { return t.UsedAt != nil }

func (t *Token) IsExpired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// IsRoot reports whether t started its family.
func (t *Token) IsRoot() bool { return t.ID == t.RootTokenID }

// IsValidFor reports whether t may be redeemed by userID at now.
func (t *Token) IsValidFor(userID string, now time.Time) bool {
	return !t.IsUsed() && !t.IsExpired(now) && t.UserID == userID
}

// Use spends the token. It can succeed only once.
func (t *Token) Use(now time.Time) error {
	if t.IsUsed() {
		return ErrTokenUsed
	}
	used := now.UTC()
	t.UsedAt = &used

	t.record(Event{
		Name:       EventTokenWasUsed,
		EntityID:   t.ID,
		OccurredAt: used,
		Data: map[string]any{
			"entityId":  t.ID,
			"userId":    t.UserID,
			"createdAt": t.CreatedAt,
			"type":      string(t.Type),
		},
	})
	return nil
}

// IssuedToken is what an issuer hands back: the raw secret exactly once,
// plus the persisted record. Signed is the self-describing action token for
// action kinds and empty for LOGIN.
type IssuedToken struct {
	Secret string
	Signed string
	Token  *Token
}

// TokenPair is the bearer representation returned by credential exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}
