package service

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
)

// MinPasswordLength applies to registration and password resets.
const MinPasswordLength = 8

// TokenTTLs holds the lifetime of every token kind.
type TokenTTLs struct {
	Login             time.Duration
	PasswordReset     time.Duration
	EmailVerification time.Duration
	Access            time.Duration
}

// DefaultTokenTTLs are used when configuration leaves a value unset.
var DefaultTokenTTLs = TokenTTLs{
	Login:             7 * 24 * time.Hour,
	PasswordReset:     time.Hour,
	EmailVerification: 24 * time.Hour,
	Access:            15 * time.Minute,
}

// For returns the lifetime of typ.
func (t TokenTTLs) For(typ domain.TokenType) time.Duration {
	switch typ {
	case domain.TokenTypeLogin:
		return t.Login
	case domain.TokenTypePasswordReset:
		return t.PasswordReset
	case domain.TokenTypeEmailVerification:
		return t.EmailVerification
	}
	return 0
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, MinPasswordLength)
	}
	return nil
}

func nowOrDefault(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
