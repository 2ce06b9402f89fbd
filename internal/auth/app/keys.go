package app

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
)

// InitAuthKeys builds the KeyManager that signs access and action tokens.
//
// Without a signing key file every key is ephemeral: outstanding access
// tokens and emailed action links stop verifying when the process restarts.
// With one, that key is loaded (or generated and written on first start) and
// becomes the first signer, so links survive restarts.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	var keys []ed25519.PrivateKey
	if cfg.SigningKeyFile != "" {
		key, err := loadOrCreateSigningKey(cfg.SigningKeyFile)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		logger.Info("signing key loaded", "path", cfg.SigningKeyFile)
	}

	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Issuer:  cfg.Issuer,
		NumKeys: cfg.NumKeys,
		Keys:    keys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	logger.Info("signing keys ready",
		"algorithm", jwtx.AlgorithmEdDSA,
		"num_keys", km.NumSigners(),
		"issuer", cfg.Issuer,
	)
	if len(keys) == 0 {
		logger.Warn("signing keys are ephemeral, outstanding tokens and links are invalid after a restart")
	}
	return km, nil
}

// loadOrCreateSigningKey reads a PKCS#8 PEM Ed25519 key from path, generating
// and writing one (0600) when the file does not exist yet.
func loadOrCreateSigningKey(path string) (ed25519.PrivateKey, error) {
	// 1. Existing key wins
	raw, err := os.ReadFile(path)
	if err == nil {
		key, err := cryptox.ParseEd25519PEM(raw)
		if err != nil {
			return nil, fmt.Errorf("parse signing key %s: %w", path, err)
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read signing key %s: %w", path, err)
	}

	// 2. First start, generate and persist
	key, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	pemBytes, err := cryptox.MarshalEd25519PEM(key)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write signing key %s: %w", path, err)
	}
	return key, nil
}
