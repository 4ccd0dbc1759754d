package service

import "errors"

// Token verification failures. The HTTP layer collapses all of these into a
// single uniform unauthenticated response so a caller cannot tell a forged
// token from a revoked one.
var (
	ErrMalformedToken     = errors.New("malformed_token")
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrWrongTokenKind     = errors.New("wrong_token_kind")
	ErrTokenExpired       = errors.New("token_expired")
	ErrTokenRevoked       = errors.New("token_revoked")
	ErrUnknownIdentity    = errors.New("unknown_identity")
	ErrAccountDeactivated = errors.New("account_deactivated")
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrEmailTaken is a registration-only failure; registration necessarily
	// reveals whether an email is in use, recovery never does.
	ErrEmailTaken = errors.New("email_taken")

	// ErrRateLimited is reported distinctly so the caller can back off; it is
	// the one recovery failure that is not collapsed into the uniform reply.
	ErrRateLimited = errors.New("rate_limited")

	// ErrRecoveryRejected covers every recovery failure cause (unknown email,
	// wrong code, already-used code, deactivated account) so responses stay
	// indistinguishable.
	ErrRecoveryRejected = errors.New("recovery_rejected")

	ErrWeakPassword     = errors.New("weak_password")
	ErrPasswordMismatch = errors.New("password_mismatch")

	// ErrStoreUnavailable wraps infrastructure failures that are neither the
	// caller's fault nor information about account state.
	ErrStoreUnavailable = errors.New("store_unavailable")
)

// IsUnauthenticated reports whether err is one of the token verification
// failures that map to the uniform unauthenticated response.
func IsUnauthenticated(err error) bool {
	for _, target := range []error{
		ErrMalformedToken,
		ErrInvalidSignature,
		ErrWrongTokenKind,
		ErrTokenExpired,
		ErrTokenRevoked,
		ErrUnknownIdentity,
		ErrAccountDeactivated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
