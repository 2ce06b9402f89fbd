package authsdk

import (
	"time"

	"github.com/aussiebroadwan/authflow/pkg/jwtx"
)

// TokenRequest is the credential exchange body. Exactly one of Password or
// RefreshToken is expected.
type TokenRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// TokenResponse is returned by a successful credential exchange.
type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`  // EdDSA JWT, verify with the JWKS
	RefreshToken string    `json:"refreshToken"` // single use, present it once to rotate
	TokenType    string    `json:"tokenType"`    // always "Bearer"
	ExpiresAt    time.Time `json:"expiresAt"`    // expiry of the access token
}

// ActionRedeemRequest submits a signed action token. Password is only read
// for PASSWORD_RESET actions.
type ActionRedeemRequest struct {
	Token    string `json:"token"`
	Password string `json:"password,omitempty"`
}

// ActionResponse is returned on redemption (202) and by polling.
type ActionResponse struct {
	ID        string    `json:"id,omitempty"`
	Status    string    `json:"status"` // PROCESSING, COMPLETED or FAILED
	Action    string    `json:"action"` // EMAIL_VERIFICATION or PASSWORD_RESET
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// PasswordResetRequest asks for a reset link. The answer is the same whether
// or not the email exists.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// RegisterRequest creates a user and sends a verification link.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailChangeRequest sets a pending email; it takes effect once verified.
type EmailChangeRequest struct {
	Email string `json:"email"`
}

// UserResponse is the public user projection.
type UserResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	PendingEmail    string     `json:"pendingEmail,omitempty"` // awaiting verification
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	Roles           []string   `json:"roles"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// HealthResponse is returned by /livez and /readyz. Checks is only set by
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency.
type HealthChecks struct {
	Database string `json:"database"` // "ok" or "error: ..."
	Cache    string `json:"cache"`    // redis, holds action requests and DTOs
	Signer   string `json:"signer"`   // at least one signing key loaded
}

// JWKSResponse is the public key set served at /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS
