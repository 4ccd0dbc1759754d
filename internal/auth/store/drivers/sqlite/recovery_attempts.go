package sqlite

import (
	"context"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
)

type recoveryAttemptsRepo struct {
	q queryer
}

func (r *recoveryAttemptsRepo) Append(ctx context.Context, a domain.RecoveryAttempt) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO recovery_attempts (id, identity_key, remote_addr, client_sig, kind, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.IdentityKey, a.RemoteAddr, a.ClientSig, a.Kind, a.Success, createdAt.UTC(),
	)
	return err
}

func (r *recoveryAttemptsRepo) CountSince(ctx context.Context, identityKey string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM recovery_attempts
		WHERE identity_key = ? AND created_at >= ?`

	var n int
	if err := r.q.QueryRowContext(ctx, query, identityKey, since.UTC()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *recoveryAttemptsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM recovery_attempts WHERE created_at < ?`, cutoff.UTC())
	return err
}
