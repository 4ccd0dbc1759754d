package domain

import "time"

// Attempt kinds recorded in the recovery attempt log.
const (
	AttemptCodeVerification = "code_verification"
	AttemptPasswordReset    = "password_reset"
)

// RecoveryCode is a single-use account recovery secret. Only the SHA-256
// fingerprint of the code is stored; the plaintext is handed to the owner
// exactly once at generation time.
type RecoveryCode struct {
	ID         string
	IdentityID string
	CodeHash   string
	Used       bool
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// AttemptOrigin captures where a recovery attempt came from.
type AttemptOrigin struct {
	RemoteAddr string
	ClientSig  string // e.g. the User-Agent header
}

// RecoveryAttempt is an append-only audit row, also the throttle source.
// IdentityKey is the submitted email and is deliberately not resolved to an
// identity, so the log never reveals which accounts exist.
type RecoveryAttempt struct {
	ID          string
	IdentityKey string
	RemoteAddr  string
	ClientSig   string
	Kind        string // AttemptCodeVerification or AttemptPasswordReset
	Success     bool
	CreatedAt   time.Time
}
