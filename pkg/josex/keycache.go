package josex

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// KeyRecord is a persisted signing key as the cache sees it. The private
// material stays encrypted at rest; only the cache decrypts it.
type KeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	Active              bool
	CreatedAt           time.Time
}

// KeyStore is the minimal persistence surface the cache needs. The concrete
// store lives elsewhere; this interface keeps the package free of storage
// imports. Implementations must return ErrKeyNotFound when no active key
// exists.
type KeyStore interface {
	CreateSigningKey(ctx context.Context, rec KeyRecord) error
	GetActiveSigningKey(ctx context.Context) (KeyRecord, error)
	// ListSigningKeys returns every retained key ordered newest first.
	ListSigningKeys(ctx context.Context) ([]KeyRecord, error)
	DeactivateSigningKeys(ctx context.Context) error
}

// PublicKey pairs a kid with its RSA public key for verification and JWKS
// publishing.
type PublicKey struct {
	Kid string
	Key *rsa.PublicKey
}

// keySnapshot is an immutable view of the key material. Readers grab the
// whole snapshot in one atomic load, so a concurrent refresh can never show
// them a kid from one generation and a key from another.
type keySnapshot struct {
	kid       string
	priv      *rsa.PrivateKey
	publics   []PublicKey
	byKid     map[string]*rsa.PublicKey
	privByKid map[string]*rsa.PrivateKey
}

// KeyCache holds decrypted key material in memory, refreshed from the store
// on rotation. Refreshes are serialized by a mutex; reads are lock-free.
type KeyCache struct {
	store   KeyStore
	rsaBits int

	mu   sync.Mutex // serializes Refresh
	snap atomic.Pointer[keySnapshot]
}

// NewKeyCache creates a cache over the given store. rsaBits is used when the
// cache has to self-heal by generating a key (0 means 2048).
func NewKeyCache(store KeyStore, rsaBits int) *KeyCache {
	if rsaBits == 0 {
		rsaBits = 2048
	}
	return &KeyCache{store: store, rsaBits: rsaBits}
}

// Refresh reloads the active private key and the full public key list from
// the store and swaps the snapshot in one step. If the store has no active
// key, one is generated and persisted first, so the service can always mint
// after a refresh.
func (c *KeyCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.store.GetActiveSigningKey(ctx)
	if errors.Is(err, ErrKeyNotFound) {
		active, err = GenerateSigningKey(c.rsaBits, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("josex: self-heal key generation: %w", err)
		}
		if err := c.store.CreateSigningKey(ctx, active); err != nil {
			return fmt.Errorf("josex: persist self-healed key: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("josex: load active key: %w", err)
	}

	priv, err := DecodePrivateKey(active)
	if err != nil {
		return fmt.Errorf("josex: decode active key %s: %w", active.Kid, err)
	}

	records, err := c.store.ListSigningKeys(ctx)
	if err != nil {
		return fmt.Errorf("josex: list signing keys: %w", err)
	}

	snap := &keySnapshot{
		kid:       active.Kid,
		priv:      priv,
		byKid:     make(map[string]*rsa.PublicKey, len(records)),
		privByKid: make(map[string]*rsa.PrivateKey, len(records)),
	}
	for _, rec := range records {
		pk, err := DecodePrivateKey(rec)
		if err != nil {
			// A single undecodable retained key shouldn't take the whole
			// verification set down.
			continue
		}
		snap.publics = append(snap.publics, PublicKey{Kid: rec.Kid, Key: &pk.PublicKey})
		snap.byKid[rec.Kid] = &pk.PublicKey
		snap.privByKid[rec.Kid] = pk
	}

	c.snap.Store(snap)
	return nil
}

// ActiveKey returns the current signing key and its kid.
func (c *KeyCache) ActiveKey() (*rsa.PrivateKey, string, error) {
	snap := c.snap.Load()
	if snap == nil || snap.priv == nil {
		return nil, "", ErrNoActiveKey
	}
	return snap.priv, snap.kid, nil
}

// ActiveKid returns the kid of the current signing key, or "".
func (c *KeyCache) ActiveKid() string {
	if snap := c.snap.Load(); snap != nil {
		return snap.kid
	}
	return ""
}

// PrivateByKid returns the retained private key for kid, if any. Decryption
// of tokens minted just before a rotation needs the demoted key until
// pruning removes it.
func (c *KeyCache) PrivateByKid(kid string) (*rsa.PrivateKey, bool) {
	snap := c.snap.Load()
	if snap == nil {
		return nil, false
	}
	pk, ok := snap.privByKid[kid]
	return pk, ok
}

// PublicByKid returns the retained public key for kid, if any.
func (c *KeyCache) PublicByKid(kid string) (*rsa.PublicKey, bool) {
	snap := c.snap.Load()
	if snap == nil {
		return nil, false
	}
	pk, ok := snap.byKid[kid]
	return pk, ok
}

// PublicKeys returns every retained public key, newest first.
func (c *KeyCache) PublicKeys() []PublicKey {
	snap := c.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.publics
}

// IsReady reports whether the cache has a usable signing key loaded.
func (c *KeyCache) IsReady() bool {
	snap := c.snap.Load()
	return snap != nil && snap.priv != nil
}

// JWKS builds the public key set document. Only RSA keys ever appear here;
// the HMAC provider's secret is never published.
func (c *KeyCache) JWKS() JWKS {
	publics := c.PublicKeys()
	doc := JWKS{Keys: make([]JWK, 0, len(publics))}
	for _, pk := range publics {
		doc.Keys = append(doc.Keys, NewRSAJWK(pk.Kid, "sig", "RS256", pk.Key))
	}
	return doc
}
