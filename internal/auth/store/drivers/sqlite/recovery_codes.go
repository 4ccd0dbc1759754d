package sqlite

import (
	"context"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
)

type recoveryCodesRepo struct {
	q queryer
}

func (r *recoveryCodesRepo) CreateRecoveryCode(ctx context.Context, c domain.RecoveryCode) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO recovery_codes (id, identity_id, code_hash, used, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		c.ID, c.IdentityID, c.CodeHash, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *recoveryCodesRepo) ListUnusedByIdentity(ctx context.Context, identityID string) ([]domain.RecoveryCode, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, identity_id, code_hash, used, used_at, created_at
		FROM recovery_codes
		WHERE identity_id = ? AND used = 0
		ORDER BY created_at, id`,
		identityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []domain.RecoveryCode
	for rows.Next() {
		var c domain.RecoveryCode
		if err := rows.Scan(&c.ID, &c.IdentityID, &c.CodeHash, &c.Used, &c.UsedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// ClaimRecoveryCode is a single conditional UPDATE. The used = 0 guard makes
// the row transition one-way: of two concurrent claims exactly one sees a
// row affected and wins.
func (r *recoveryCodesRepo) ClaimRecoveryCode(ctx context.Context, codeID string, usedAt time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE recovery_codes SET used = 1, used_at = ?
		WHERE id = ? AND used = 0`,
		usedAt.UTC(), codeID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *recoveryCodesRepo) DeleteByIdentity(ctx context.Context, identityID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM recovery_codes WHERE identity_id = ?`, identityID)
	return err
}
