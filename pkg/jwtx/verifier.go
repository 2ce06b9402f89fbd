package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates our JWTs and gives you back the claims if they are legit.
type Verifier interface {
	// Verify checks an access token.
	Verify(token string) (Claims, error)

	// VerifyAction checks a signed action token. Besides the registered
	// claims it requires the jti, the action and the embedded secret.
	VerifyAction(token string) (ActionClaims, error)
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// EdDSAVerifier validates JWTs signed by any key in a KeySet.
type EdDSAVerifier struct {
	keys   *KeySet
	issuer string
}

// NewVerifierEdDSA creates a verifier over keys, enforcing issuer when set.
func NewVerifierEdDSA(keys *KeySet, issuer string) *EdDSAVerifier {
	return &EdDSAVerifier{keys: keys, issuer: issuer}
}

// Verify implements Verifier.
func (v *EdDSAVerifier) Verify(tokenStr string) (Claims, error) {
	var c Claims
	if err := v.parse(tokenStr, &c); err != nil {
		return Claims{}, err
	}
	if err := validateRegistered(&c.RegisteredClaims, v.issuer); err != nil {
		return Claims{}, err
	}
	return c, nil
}

// VerifyAction implements Verifier.
func (v *EdDSAVerifier) VerifyAction(tokenStr string) (ActionClaims, error) {
	var c ActionClaims
	if err := v.parse(tokenStr, &c); err != nil {
		return ActionClaims{}, err
	}
	if err := validateRegistered(&c.RegisteredClaims, v.issuer); err != nil {
		return ActionClaims{}, err
	}
	if c.Action == "" || c.Secret == "" || c.ID == "" {
		return ActionClaims{}, ErrMalformed
	}
	return c, nil
}

// parse checks the signature against the key named by the kid header. Only
// EdDSA is accepted, so a token cannot downgrade the algorithm.
func (v *EdDSAVerifier) parse(tokenStr string, claims jwt.Claims) error {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwtx: missing kid")
		}
		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("jwtx: unknown kid %q: %w", kid, err)
		}
		return pub, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case err != nil:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case !token.Valid:
		return ErrMalformed
	}
	return nil
}
