package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// User owns the credentials behind a token family.
type User struct {
	Recorder

	ID              string
	Email           string
	PendingEmail    string
	EmailVerifiedAt *time.Time
	PasswordHash    string // argon2 encoded
	Roles           []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return email, nil
}

// NewUser creates an unverified user. The address starts out pending so the
// first verification goes through the same path as an email change.
func NewUser(id, email, passwordHash string, roles []string, now time.Time) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if id == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: user id and password are required", ErrValidation)
	}
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}

	now = now.UTC()
	u := &User{
		ID:           id,
		Email:        email,
		PendingEmail: email,
		PasswordHash: passwordHash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.record(Event{
		Name:       EventUserWasCreated,
		EntityID:   u.ID,
		OccurredAt: now,
		Data:       map[string]any{"email": u.Email, "roles": u.Roles},
		Snapshot:   u.DTO(),
	})
	return u, nil
}

// RequestEmailChange stores email as pending until it is verified.
func (u *User) RequestEmailChange(email string, now time.Time) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	u.PendingEmail = email
	u.touch(now, map[string]any{"pendingEmail": email})
	return nil
}

// VerifyEmail promotes email if it is still the pending address. A stale
// address is a no-op and reports false.
func (u *User) VerifyEmail(email string, now time.Time) bool {
	if u.PendingEmail == "" || u.PendingEmail != email {
		return false
	}

	now = now.UTC()
	u.Email = email
	u.PendingEmail = ""
	u.EmailVerifiedAt = &now

	u.record(Event{
		Name:       EventUserEmailWasVerified,
		EntityID:   u.ID,
		OccurredAt: now,
		Data:       map[string]any{"email": email},
	})
	u.touch(now, map[string]any{"email": email})
	return true
}

// ResetPassword replaces the password hash.
func (u *User) ResetPassword(passwordHash string, now time.Time) error {
	if passwordHash == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	now = now.UTC()
	u.PasswordHash = passwordHash

	u.record(Event{
		Name:       EventUserPasswordWasReset,
		EntityID:   u.ID,
		OccurredAt: now,
		Data:       map[string]any{"password": passwordHash},
	})
	u.touch(now, map[string]any{"passwordChanged": true})
	return nil
}

func (u *User) touch(now time.Time, changes map[string]any) {
	u.UpdatedAt = now.UTC()
	u.record(Event{
		Name:       EventUserWasUpdated,
		EntityID:   u.ID,
		OccurredAt: u.UpdatedAt,
		Data:       changes,
		Snapshot:   u.DTO(),
	})
}

// UserDTO is the read model. It never carries the password hash.
type UserDTO struct {
	ID              string     `json:"id" cbor:"id"`
	Email           string     `json:"email" cbor:"email"`
	PendingEmail    string     `json:"pendingEmail,omitempty" cbor:"pendingEmail,omitempty"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty" cbor:"emailVerifiedAt,omitempty"`
	Roles           []string   `json:"roles" cbor:"roles"`
	CreatedAt       time.Time  `json:"createdAt" cbor:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" cbor:"updatedAt"`
}

func (u *User) DTO() UserDTO {
	return UserDTO{
		ID:              u.ID,
		Email:           u.Email,
		PendingEmail:    u.PendingEmail,
		EmailVerifiedAt: u.EmailVerifiedAt,
		Roles:           append([]string(nil), u.Roles...),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
