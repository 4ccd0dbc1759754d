package store

import (
	"context"
	"errors"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. It exposes sub-repositories to keep concerns tidy
// and testable.
type Store interface {
	Identities() Identities
	RevokedTokens() RevokedTokens
	RecoveryCodes() RecoveryCodes
	RecoveryAttempts() RecoveryAttempts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to run multi-step operations that must be atomic
	// (e.g. claim a recovery code + update the password hash).
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

type Identities interface {
	// GetIdentityByID returns an identity by id.
	GetIdentityByID(ctx context.Context, id string) (domain.Identity, error)

	// GetIdentityByEmail is used during login and recovery.
	GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error)

	// CreateIdentity inserts a new identity (id is provided by the app via
	// ULID). Returns ErrAlreadyExists when the email is taken.
	CreateIdentity(ctx context.Context, i domain.Identity) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, identityID string, newHash string) error

	// UpdateRole changes the role and bumps updated_at.
	UpdateRole(ctx context.Context, identityID string, role string) error

	// SetActive soft-(de)activates the identity. There is no hard delete.
	SetActive(ctx context.Context, identityID string, active bool) error
}

type RevokedTokens interface {
	// Revoke appends a jti to the revocation ledger. Idempotent: concurrent
	// or repeated revokes of the same jti succeed without error.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether the jti appears in the ledger.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired prunes entries whose original expiry has passed; an
	// optimisation, not a correctness requirement.
	DeleteExpired(ctx context.Context) error
}

type RecoveryCodes interface {
	// CreateRecoveryCode stores a code fingerprint for an identity.
	CreateRecoveryCode(ctx context.Context, c domain.RecoveryCode) error

	// ListUnusedByIdentity returns the identity's not-yet-used codes.
	ListUnusedByIdentity(ctx context.Context, identityID string) ([]domain.RecoveryCode, error)

	// ClaimRecoveryCode atomically marks the code used if and only if it is
	// still unused. Returns true for the winner; a concurrent second caller
	// observes false. Implemented as a single conditional UPDATE so there is
	// no read-then-write race window.
	ClaimRecoveryCode(ctx context.Context, codeID string, usedAt time.Time) (bool, error)

	// DeleteByIdentity removes all codes for an identity (regeneration).
	DeleteByIdentity(ctx context.Context, identityID string) error
}

type RecoveryAttempts interface {
	// Append records a recovery attempt. Rows are never mutated.
	Append(ctx context.Context, a domain.RecoveryAttempt) error

	// CountSince counts attempts for an identity key in the trailing window.
	CountSince(ctx context.Context, identityKey string, since time.Time) (int, error)

	// DeleteOlderThan prunes stale audit rows (housekeeping).
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}
