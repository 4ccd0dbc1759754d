package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// GenerateToken creates a cryptographically secure random token of the specified byte length.
// The token is returned as a base64url-encoded string (URL-safe, no padding).
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token.
// This is used to store hashed secrets in the database, allowing lookup
// without persisting the original value.
//
// The fingerprint is returned as a base64url-encoded string (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// CodeAlphabet is the unambiguous alphabet used for recovery codes.
// Crockford base32: excludes I, L, O and U so codes survive being read
// over the phone or copied by hand. 8 characters carry 40 bits.
const CodeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// GenerateCode produces a random code of the given length drawn from
// CodeAlphabet using crypto/rand.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("cryptox: code length must be positive, got %d", length)
	}

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(CodeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("cryptox: failed to generate random code: %w", err)
		}
		code[i] = CodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
