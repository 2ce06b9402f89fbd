package cryptox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHasher(t *testing.T) {
	h := PasswordHasher{Pepper: "pepper"}

	hash, err := h.Hash("Secret123!")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$v=19$")

	require.NoError(t, h.Verify("Secret123!", hash))
	require.ErrorIs(t, h.Verify("wrong", hash), ErrPasswordMismatch)

	// A different pepper must not verify
	other := PasswordHasher{Pepper: "other"}
	require.ErrorIs(t, other.Verify("Secret123!", hash), ErrPasswordMismatch)
}

func TestPasswordHasherRejectsMalformed(t *testing.T) {
	h := PasswordHasher{}
	for _, in := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=19$junk$a$b"} {
		require.ErrorIs(t, h.Verify("x", in), ErrInvalidHash, in)
	}
}

func TestDummyHashNeverMatches(t *testing.T) {
	h := PasswordHasher{Pepper: "pepper"}
	require.ErrorIs(t, h.Verify("", DummyHash), ErrPasswordMismatch)
	require.ErrorIs(t, h.Verify("password", DummyHash), ErrPasswordMismatch)
}

func TestLoadOrCreatePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "pepper must be stable across loads")
}
