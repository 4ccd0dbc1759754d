package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
)

type identitiesRepo struct {
	q queryer
}

const identityColumns = `id, email, name, role, password_hash, active, created_at, updated_at`

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

func (r *identitiesRepo) GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ?`, email)
	return scanIdentity(row)
}

func (r *identitiesRepo) CreateIdentity(ctx context.Context, i domain.Identity) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO identities (id, email, name, role, password_hash, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Email, i.Name, i.Role, i.PasswordHash, i.Active, now, now,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return nil
}

func (r *identitiesRepo) UpdatePasswordHash(ctx context.Context, identityID string, newHash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE identities SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), identityID,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return requireRow(res)
}

func (r *identitiesRepo) UpdateRole(ctx context.Context, identityID string, role string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE identities SET role = ?, updated_at = ? WHERE id = ?`,
		role, time.Now().UTC(), identityID,
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireRow(res)
}

func (r *identitiesRepo) SetActive(ctx context.Context, identityID string, active bool) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE identities SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), identityID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (domain.Identity, error) {
	var i domain.Identity
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.Role,
		&i.PasswordHash,
		&i.Active,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return i, nil
}
