package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretBytes is the smallest HMAC secret accepted. Anything shorter is
// cheaper to brute-force than the tokens it protects.
const MinSecretBytes = 32

// Signer is our interface for anything that can sign session tokens.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
	Validate() error
}

// HS256Signer signs tokens with a single server-held HMAC secret.
type HS256Signer struct {
	secret []byte
}

// NewSignerHS256 creates an HS256 signer. The secret is injected
// configuration; a missing or short secret is a startup failure, never a
// per-request one.
func NewSignerHS256(secret []byte) (*HS256Signer, error) {
	s := &HS256Signer{secret: secret}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign takes claims and turns them into a signed compact JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Validate does a quick sanity check on the secret.
func (s *HS256Signer) Validate() error {
	if len(s.secret) < MinSecretBytes {
		return errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	return nil
}
