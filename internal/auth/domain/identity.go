package domain

import "time"

// Roles an identity can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is a registered account. Identities are never hard-deleted;
// deactivation flips Active off and every verification path treats the
// identity as gone.
type Identity struct {
	ID           string
	Email        string // unique external key
	Name         string
	Role         string // RoleUser or RoleAdmin
	PasswordHash string // argon2id encoded, never logged
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
