package cryptox_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestEd25519PEMRoundTrip(t *testing.T) {
	key, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	require.Len(t, key, ed25519.PrivateKeySize)

	pemBytes, err := cryptox.MarshalEd25519PEM(key)
	require.NoError(t, err)
	require.Contains(t, string(pemBytes), "BEGIN PRIVATE KEY")

	parsed, err := cryptox.ParseEd25519PEM(pemBytes)
	require.NoError(t, err)
	require.True(t, key.Equal(parsed))
}

func TestParseEd25519PEMRejectsGarbage(t *testing.T) {
	_, err := cryptox.ParseEd25519PEM([]byte("not pem"))
	require.Error(t, err)
}
