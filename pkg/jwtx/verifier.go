package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrWrongKind   = errors.New("jwtx: wrong token kind")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Verifier validates the structure and signature of a token and gives back
// the claims if they are legit. Claim-level checks (kind, expiry) are left
// to the caller so rejection ordering stays under its control; nothing in
// the claims is trusted until the signature has been verified here.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// HS256Verifier validates tokens signed with the shared HMAC secret.
type HS256Verifier struct {
	secret []byte
	issuer string
}

// NewVerifierHS256 creates a verifier bound to the signing secret and the
// expected issuer. An empty issuer means "don't enforce".
func NewVerifierHS256(secret []byte, issuer string) (*HS256Verifier, error) {
	if len(secret) < MinSecretBytes {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	return &HS256Verifier{secret: secret, issuer: issuer}, nil
}

// Verify parses the compact JWT and checks its signature and issuer.
// Expiry is deliberately NOT checked here: the session verifier wants to
// distinguish "expired" from "revoked" after the signature has been proven,
// so claims come back even for stale tokens.
func (v *HS256Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidSig
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return Claims{}, ErrIssuer
	}

	return *claims, nil
}
