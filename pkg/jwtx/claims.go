package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default lifetime for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

// Claims are the access-token claims handed to web, mobile and admin clients.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the root token id of the refresh family this access token was
	// minted from. Revoking the family makes refreshing impossible, the access
	// token itself simply runs out.
	SID string `json:"sid,omitempty"`

	Roles []string `json:"roles,omitempty"`
}

// NewAccessClaims builds minimally-correct claims.
func NewAccessClaims(subject, sid string, roles []string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:   sid,
		Roles: roles,
	}
}

// HasRole reports whether the claims carry role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// ActionClaims describe a signed single-use action link (email verification,
// password reset). The payload is readable by whoever holds the link, only
// the signature and the referenced token's single-use state make it safe.
type ActionClaims struct {
	jwt.RegisteredClaims

	Action string          `json:"act"`
	Data   json.RawMessage `json:"data,omitempty"`

	// Secret is the raw value whose fingerprint is stored on the Token record.
	Secret string `json:"sec"`
}

// NewActionClaims builds action claims for the token identified by tokenID.
func NewActionClaims(
	tokenID, subject, action string,
	data json.RawMessage,
	secret, issuer string,
	now, expiresAt time.Time,
) ActionClaims {
	return ActionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID,
		},
		Action: action,
		Data:   data,
		Secret: secret,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func validateRegistered(c *jwt.RegisteredClaims, issuer string) error {
	if issuer != "" && c.Issuer != issuer {
		return ErrIssuer
	}

	now := time.Now().UTC()
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
