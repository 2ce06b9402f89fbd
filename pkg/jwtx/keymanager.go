package jwtx

import (
	"crypto/ed25519"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/aussiebroadwan/authflow/pkg/cryptox"
)

// KeyManager owns the signing keys of an instance and the matching verifier.
// It wires key generation (cryptox), signing and verification (jwtx) and the
// KeySet published as JWKS.
//
// Multiple signing keys are supported. Signing picks one at random while
// verification accepts any key in the KeySet.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Issuer is stamped into and enforced on every token.
	Issuer string

	// NumKeys is how many ephemeral keys to generate. Defaults to 1, capped at 10.
	NumKeys int

	// Keys are pre-existing keys (e.g. loaded from disk) added before any
	// ephemeral ones. Tokens signed with them survive restarts.
	Keys []ed25519.PrivateKey
}

// NewKeyManager builds a manager with the configured keys. Keys passed in
// opts.Keys come first; ephemeral keys fill up to NumKeys. Ephemeral keys only
// exist in memory, so anything they signed is invalid after a restart.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	// Determine number of keys, at least 1 and capped at 10
	numKeys := min(max(opts.NumKeys, 1), 10)

	// Create KeySet for JWKS publishing and the verifier on top of it
	km := &KeyManager{KeySet: NewKeySet()}
	km.Verifier = NewVerifierEdDSA(km.KeySet, opts.Issuer)

	// Generate ephemeral keys for whatever was not supplied
	keys := append([]ed25519.PrivateKey(nil), opts.Keys...)
	for len(keys) < numKeys {
		key, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	for i, key := range keys {
		kid, err := keyID(key)
		if err != nil {
			return nil, err
		}
		signer, err := NewSignerEdDSA(kid, key)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	return km, nil
}

// GetSigner returns a randomly selected signer from the available signing
// keys. With a single key it returns that key consistently.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	}
	// Random selection for load balancing and unpredictability
	return km.signers[rand.IntN(len(km.signers))]
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner adds a new signing key to the KeyManager.
// The key is added to both the active signers list (for signing) and the
// KeySet (for verification). This method is thread-safe.
func (km *KeyManager) AddSigner(signer Signer) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	// Add to KeySet for verification
	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}
	// Add to active signers list
	km.signers = append(km.signers, signer)
	return nil
}

// IsReady returns true if the KeyManager has keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// keyID derives a stable kid from the public key, so a key loaded from disk
// keeps its kid across restarts.
func keyID(key ed25519.PrivateKey) (string, error) {
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return "", fmt.Errorf("jwtx: not an Ed25519 key")
	}
	return "authflow-" + cryptox.FingerprintToken(string(pub))[:16], nil
}
