package josex

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/bbmovie/auth/pkg/cryptox"
	"github.com/bbmovie/auth/pkg/idx"
)

// AlgorithmRS256 is the only asymmetric signing algorithm the authority
// persists. HMAC secrets are process-lifetime and never stored.
const AlgorithmRS256 = "RS256"

// GenerateSigningKey creates a fresh active RSA signing key with a new kid.
// The PEM private key is encrypted with the master key before it ever leaves
// this function.
func GenerateSigningKey(bits int, now time.Time) (KeyRecord, error) {
	if bits == 0 {
		bits = 2048
	}

	pemData, err := cryptox.GenerateRSAKey(bits)
	if err != nil {
		return KeyRecord{}, fmt.Errorf("josex: generate rsa key: %w", err)
	}

	encrypted, err := cryptox.EncryptPrivateKey(pemData)
	if err != nil {
		return KeyRecord{}, fmt.Errorf("josex: encrypt private key: %w", err)
	}

	return KeyRecord{
		ID:                  idx.New().String(),
		Kid:                 idx.New().String(),
		Algorithm:           AlgorithmRS256,
		PrivateKeyEncrypted: encrypted,
		Active:              true,
		CreatedAt:           now,
	}, nil
}

// DecodePrivateKey decrypts and parses a record's private key material.
func DecodePrivateKey(rec KeyRecord) (*rsa.PrivateKey, error) {
	pemData, err := cryptox.DecryptPrivateKey(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("josex: decrypt private key: %w", err)
	}
	return cryptox.ParseRSAPrivateKey(pemData)
}

// GenerateHMACSecret returns a random 256-bit secret for the HMAC provider.
func GenerateHMACSecret() ([]byte, error) {
	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("josex: generate hmac secret: %w", err)
	}
	return []byte(tok), nil
}
