package sqlite

import (
	"context"
	"time"
)

type revokedTokensRepo struct {
	q queryer
}

// Revoke records a token identifier on the revocation ledger. Revoking the
// same jti twice is a no-op.
func (r *revokedTokensRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	const query = `
		INSERT INTO revoked_tokens (jti, expires_at, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(jti) DO NOTHING`

	_, err := r.q.ExecContext(ctx, query, jti, expiresAt.UTC(), time.Now().UTC())
	return err
}

func (r *revokedTokensRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = ?)`

	var revoked bool
	if err := r.q.QueryRowContext(ctx, query, jti).Scan(&revoked); err != nil {
		return false, err
	}
	return revoked, nil
}

// DeleteExpired drops ledger entries whose underlying tokens can no longer
// pass an expiry check anyway.
func (r *revokedTokensRepo) DeleteExpired(ctx context.Context) error {
	const query = `DELETE FROM revoked_tokens WHERE expires_at <= ?`

	_, err := r.q.ExecContext(ctx, query, time.Now().UTC())
	return err
}
