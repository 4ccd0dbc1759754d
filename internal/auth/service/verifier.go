package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
	"github.com/pulsehq/pulse/internal/auth/store"
	"github.com/pulsehq/pulse/pkg/jwtx"
)

// VerifierService answers "is this token good, and for whom?". Checks run
// in a fixed order:
//
//  1. decode / structural parse
//  2. signature (and issuer)
//  3. kind discriminator
//  4. expiry
//  5. revocation ledger
//  6. subject exists and is active
//
// Nothing in the claims is acted on before step 2 proves them authentic.
// Once the signature holds, the remaining checks all run regardless of
// earlier failures, so a request costs the same whether its token is
// expired, revoked or both; the reported error is the first failure in
// the order above.
type VerifierService struct {
	Verifier jwtx.Verifier
	Store    store.Store
}

// Verify checks token as a session token of the expected kind and returns
// the authenticated identity together with the verified claims.
func (s *VerifierService) Verify(ctx context.Context, token, expectedKind string) (domain.Identity, jwtx.Claims, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrMalformed):
			return domain.Identity{}, jwtx.Claims{}, ErrMalformedToken
		default:
			return domain.Identity{}, jwtx.Claims{}, ErrInvalidSignature
		}
	}

	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := claims.ValidateKind(expectedKind); err != nil {
		fail(ErrWrongTokenKind)
	}

	if err := claims.ValidateExpiry(time.Now()); err != nil {
		fail(ErrTokenExpired)
	}

	revoked, err := s.Store.RevokedTokens().IsRevoked(ctx, claims.ID)
	switch {
	case err != nil:
		fail(fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	case revoked:
		fail(ErrTokenRevoked)
	}

	identity, err := s.Store.Identities().GetIdentityByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(ErrUnknownIdentity)
	case err != nil:
		fail(fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	case !identity.Active:
		fail(ErrUnknownIdentity)
	}

	if firstErr != nil {
		return domain.Identity{}, jwtx.Claims{}, firstErr
	}

	return identity, claims, nil
}
