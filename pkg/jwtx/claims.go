package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kind discriminators carried in the "knd" claim. A refresh token can
// never be presented where an access token is expected and vice versa.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Default token TTL constants.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 1 * time.Hour

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Claims are session-token claims. Keep changes additive to preserve
// compatibility with already-issued tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Kind discriminates access tokens from refresh tokens.
	Kind string `json:"knd"`

	// Email of the subject identity, for visibility in logs and downstream
	// consumers. Authoritative identity data always comes from the store.
	Email string `json:"email,omitempty"`
}

// NewSessionClaims builds minimally-correct claims for a session token of
// the given kind. The jti is freshly generated and unique per token.
func NewSessionClaims(
	subject, email, kind string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Kind:  kind,
		Email: email,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateKind checks the token kind discriminator.
func (c *Claims) ValidateKind(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Kind != expected {
		return ErrWrongKind
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry(now time.Time) error {
	now = now.UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
