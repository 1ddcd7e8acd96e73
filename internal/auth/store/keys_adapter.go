package store

import (
	"context"
	"errors"

	"github.com/bbmovie/auth/internal/auth/domain"
	"github.com/bbmovie/auth/pkg/josex"
)

// keyStoreAdapter bridges the Store's SigningKeys repository to the
// josex.KeyStore interface so the key cache stays free of storage imports.
type keyStoreAdapter struct {
	db Store
}

// NewKeyStoreAdapter wraps a Store as a josex.KeyStore.
func NewKeyStoreAdapter(db Store) josex.KeyStore {
	return &keyStoreAdapter{db: db}
}

func (a *keyStoreAdapter) CreateSigningKey(ctx context.Context, rec josex.KeyRecord) error {
	return a.db.SigningKeys().CreateSigningKey(ctx, fromKeyRecord(rec))
}

func (a *keyStoreAdapter) GetActiveSigningKey(ctx context.Context) (josex.KeyRecord, error) {
	key, err := a.db.SigningKeys().GetActiveSigningKey(ctx)
	if errors.Is(err, ErrNotFound) {
		return josex.KeyRecord{}, josex.ErrKeyNotFound
	}
	if err != nil {
		return josex.KeyRecord{}, err
	}
	return toKeyRecord(key), nil
}

func (a *keyStoreAdapter) ListSigningKeys(ctx context.Context) ([]josex.KeyRecord, error) {
	keys, err := a.db.SigningKeys().ListSigningKeys(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]josex.KeyRecord, len(keys))
	for i, key := range keys {
		records[i] = toKeyRecord(key)
	}
	return records, nil
}

func (a *keyStoreAdapter) DeactivateSigningKeys(ctx context.Context) error {
	return a.db.SigningKeys().DeactivateSigningKeys(ctx)
}

func toKeyRecord(k domain.SigningKey) josex.KeyRecord {
	return josex.KeyRecord{
		ID:                  k.ID,
		Kid:                 k.Kid,
		Algorithm:           k.Algorithm,
		PrivateKeyEncrypted: k.PrivateKeyEncrypted,
		Active:              k.Active,
		CreatedAt:           k.CreatedAt,
	}
}

func fromKeyRecord(rec josex.KeyRecord) domain.SigningKey {
	return domain.SigningKey{
		ID:                  rec.ID,
		Kid:                 rec.Kid,
		Algorithm:           rec.Algorithm,
		PrivateKeyEncrypted: rec.PrivateKeyEncrypted,
		Active:              rec.Active,
		CreatedAt:           rec.CreatedAt,
	}
}
