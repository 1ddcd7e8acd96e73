package cryptox_test

import (
	"testing"

	"github.com/bbmovie/auth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken_Sizes(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "128-bit", size: cryptox.TokenSize128},
		{name: "256-bit", size: cryptox.TokenSize256},
		{name: "512-bit", size: cryptox.TokenSize512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := cryptox.GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEmpty(t, tok)

			other, err := cryptox.GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, tok, other)
		})
	}
}

func TestGenerateToken_RejectsNonPositiveSize(t *testing.T) {
	_, err := cryptox.GenerateToken(0)
	require.Error(t, err)

	_, err = cryptox.GenerateToken(-1)
	require.Error(t, err)
}

func TestFingerprintToken_Deterministic(t *testing.T) {
	a := cryptox.FingerprintToken("refresh-token-value")
	b := cryptox.FingerprintToken("refresh-token-value")
	c := cryptox.FingerprintToken("different-value")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 43) // base64url SHA-256
}

func TestEncryptDecryptPrivateKey_RoundTrip(t *testing.T) {
	t.Setenv("AUTH_MASTER_KEY", "unit-test-master-key")
	cryptox.ResetMasterKeyForTesting()
	t.Cleanup(cryptox.ResetMasterKeyForTesting)

	pemData, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	encrypted, err := cryptox.EncryptPrivateKey(pemData)
	require.NoError(t, err)
	require.NotEqual(t, pemData, encrypted)

	decrypted, err := cryptox.DecryptPrivateKey(encrypted)
	require.NoError(t, err)
	require.Equal(t, pemData, decrypted)
}

func TestDecryptPrivateKey_RejectsTamperedCiphertext(t *testing.T) {
	t.Setenv("AUTH_MASTER_KEY", "unit-test-master-key")
	cryptox.ResetMasterKeyForTesting()
	t.Cleanup(cryptox.ResetMasterKeyForTesting)

	encrypted, err := cryptox.EncryptPrivateKey([]byte("secret material"))
	require.NoError(t, err)

	encrypted[len(encrypted)-1] ^= 0xff
	_, err = cryptox.DecryptPrivateKey(encrypted)
	require.Error(t, err)
}

func TestParseRSAPrivateKey(t *testing.T) {
	pemData, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	key, err := cryptox.ParseRSAPrivateKey(pemData)
	require.NoError(t, err)
	require.NotNil(t, key)
	require.NoError(t, key.Validate())

	_, err = cryptox.ParseRSAPrivateKey([]byte("not pem"))
	require.Error(t, err)
}

func TestHashAndVerifyPassword(t *testing.T) {
	dir := t.TempDir()
	cryptox.SetPepperPath(dir + "/pepper")

	hash, err := cryptox.HashPassword("hunter2!")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$")

	require.NoError(t, cryptox.VerifyPassword("hunter2!", hash))
	require.Error(t, cryptox.VerifyPassword("wrong", hash))
}
