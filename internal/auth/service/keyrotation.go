package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bbmovie/auth/internal/auth/domain"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/pkg/josex"
)

const (
	// DefaultRetainFloor is the minimum number of signing keys kept around.
	// Retained keys still verify tokens minted before a rotation.
	DefaultRetainFloor = 5

	// DefaultPruneGrace protects freshly demoted keys from pruning while
	// tokens signed with them are still in flight.
	DefaultPruneGrace = 15 * time.Minute
)

// KeyRotationService rotates and prunes RSA signing keys. Rotation runs in a
// transaction so there is never a moment with zero or two active keys.
type KeyRotationService struct {
	store store.Store
	keys  *josex.KeyCache

	rsaBits     int
	retainFloor int
	pruneGrace  time.Duration
}

// NewKeyRotationService wires the rotation service. Zero values fall back to
// the defaults (2048-bit keys, floor of 5, 15m grace).
func NewKeyRotationService(st store.Store, keys *josex.KeyCache, rsaBits, retainFloor int, pruneGrace time.Duration) *KeyRotationService {
	if rsaBits == 0 {
		rsaBits = 2048
	}
	if retainFloor <= 0 {
		retainFloor = DefaultRetainFloor
	}
	if pruneGrace <= 0 {
		pruneGrace = DefaultPruneGrace
	}
	return &KeyRotationService{
		store:       st,
		keys:        keys,
		rsaBits:     rsaBits,
		retainFloor: retainFloor,
		pruneGrace:  pruneGrace,
	}
}

// Rotate generates a new active key, demotes every other key, and refreshes
// the in-memory cache. Demoted keys stay in the store so old tokens keep
// verifying until pruning catches up with them.
func (s *KeyRotationService) Rotate(ctx context.Context) error {
	rec, err := josex.GenerateSigningKey(s.rsaBits, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.SigningKeys().DeactivateSigningKeys(ctx); err != nil {
			return fmt.Errorf("deactivate keys: %w", err)
		}
		if err := tx.SigningKeys().CreateSigningKey(ctx, keyFromRecord(rec)); err != nil {
			return fmt.Errorf("create key: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.keys.Refresh(ctx)
}

// Prune deletes old inactive keys while keeping at least retainFloor keys
// total and never touching a key younger than the grace window.
func (s *KeyRotationService) Prune(ctx context.Context) error {
	keys, err := s.store.SigningKeys().ListSigningKeys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	if len(keys) <= s.retainFloor {
		return nil
	}

	cutoff := time.Now().UTC().Add(-s.pruneGrace)
	budget := len(keys) - s.retainFloor

	// Keys arrive newest first; walk from the oldest end so the budget is
	// spent on the oldest prunable keys.
	var ids []string
	for i := len(keys) - 1; i >= 0 && len(ids) < budget; i-- {
		k := keys[i]
		if !k.Active && k.CreatedAt.Before(cutoff) {
			ids = append(ids, k.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.store.SigningKeys().DeleteSigningKeys(ctx, ids); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}

	return s.keys.Refresh(ctx)
}

func keyFromRecord(rec josex.KeyRecord) domain.SigningKey {
	return domain.SigningKey{
		ID:                  rec.ID,
		Kid:                 rec.Kid,
		Algorithm:           rec.Algorithm,
		PrivateKeyEncrypted: rec.PrivateKeyEncrypted,
		Active:              rec.Active,
		CreatedAt:           rec.CreatedAt,
	}
}

// EnsureActiveKey rotates on first boot, when the store holds no active key.
func (s *KeyRotationService) EnsureActiveKey(ctx context.Context) error {
	_, err := s.store.SigningKeys().GetActiveSigningKey(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return s.Rotate(ctx)
	}
	if err != nil {
		return fmt.Errorf("check active key: %w", err)
	}
	return s.keys.Refresh(ctx)
}
