package domain

import "time"

// SigningKey is a persisted RSA signing key. The private material is
// AES-256-GCM encrypted with the master key before it reaches the store.
// Exactly one key is active at a time; inactive keys are retained for
// verification until the pruner removes them.
type SigningKey struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	Active              bool
	CreatedAt           time.Time
}
