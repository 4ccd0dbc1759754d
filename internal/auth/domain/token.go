package domain

import "time"

// TokenPair is what login and register return: a short-lived access token
// and a long-lived refresh token, both signed JWTs.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // access token lifetime
}

// RevokedToken is a revocation ledger entry. Once a jti lands here the
// token is permanently unusable, even before its natural expiry. Entries
// may be pruned once ExpiresAt has passed because an expired token already
// fails verification on its own.
type RevokedToken struct {
	JTI       string
	ExpiresAt time.Time // original expiry of the revoked token
	CreatedAt time.Time
}
