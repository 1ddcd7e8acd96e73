package store

import (
	"context"
	"errors"

	"github.com/bbmovie/auth/internal/auth/domain"
	"github.com/bbmovie/auth/pkg/josex"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to actively stop people from accidentally nesting
// transactions.
type Store interface {
	Users() Users
	Sessions() Sessions
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., key
	// rotation). The caller MUST call Commit() or Rollback() on the
	// returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByEmail is used during login and attribute re-resolution.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// UpdateUserAttributes replaces the access-control attributes and bumps
	// updated_at. Callers are responsible for flagging affected sessions.
	UpdateUserAttributes(ctx context.Context, email string, attrs josex.Attributes) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, email string, newHash string) error
}

type Sessions interface {
	// UpsertSession inserts or replaces the session for (email, device_name).
	// A user never holds two sessions for the same device.
	UpsertSession(ctx context.Context, s domain.Session) error

	// GetSessionBySID fetches a session by its sid.
	GetSessionBySID(ctx context.Context, sid string) (domain.Session, error)

	// ListSessionsByEmail returns all live sessions for a user, newest first.
	ListSessionsByEmail(ctx context.Context, email string) ([]domain.Session, error)

	// DeleteSessionByEmailAndSID removes a single device session.
	DeleteSessionByEmailAndSID(ctx context.Context, email, sid string) error

	// DeleteSessionsByEmail removes every session for a user (logout-all).
	DeleteSessionsByEmail(ctx context.Context, email string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with encrypted private material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// GetActiveSigningKey returns the single active key.
	GetActiveSigningKey(ctx context.Context) (domain.SigningKey, error)

	// GetSigningKeyByKid fetches a signing key by its key identifier.
	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// ListSigningKeys returns all retained keys ordered by creation date
	// (newest first). Inactive keys still verify old tokens.
	ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// DeactivateSigningKeys clears the active flag on every key.
	DeactivateSigningKeys(ctx context.Context) error

	// DeleteSigningKeys removes the keys with the given ids.
	DeleteSigningKeys(ctx context.Context, ids []string) error
}
