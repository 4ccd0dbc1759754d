package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsehq/pulse/pkg/jwtx"
)

func TestVerify_Garbage(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.verifier.Verify(context.Background(), "not.a.jwt", jwtx.KindAccess)
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestVerify_TamperedSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	forged := res.Tokens.AccessToken[:len(res.Tokens.AccessToken)-2] + "xx"
	_, _, err := env.verifier.Verify(ctx, forged, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_ForeignSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	foreign, err := jwtx.NewSignerHS256([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	token, err := foreign.Sign(jwtx.NewSessionClaims(
		res.Identity.ID, res.Identity.Email, jwtx.KindAccess,
		time.Hour, testIssuer, time.Now(),
	))
	require.NoError(t, err)

	_, _, err = env.verifier.Verify(ctx, token, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_WrongKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	_, _, err := env.verifier.Verify(ctx, res.Tokens.RefreshToken, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestVerify_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	// Issued an hour in the past with a one-minute lifetime
	token, err := signer.Sign(jwtx.NewSessionClaims(
		res.Identity.ID, res.Identity.Email, jwtx.KindAccess,
		time.Minute, testIssuer, time.Now().Add(-time.Hour),
	))
	require.NoError(t, err)

	_, _, err = env.verifier.Verify(ctx, token, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_ExpiryCheckedBeforeRevocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	claims := jwtx.NewSessionClaims(
		res.Identity.ID, res.Identity.Email, jwtx.KindAccess,
		time.Minute, testIssuer, time.Now().Add(-time.Hour),
	)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	// Both expired and revoked: the earlier check wins
	require.NoError(t, env.store.RevokedTokens().Revoke(ctx, claims.ID, claims.ExpiresAt.Time))

	_, _, err = env.verifier.Verify(ctx, token, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_UnknownSubject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "alice@example.com", "Secret1!")

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	token, err := signer.Sign(jwtx.NewSessionClaims(
		"01ARZ3NDEKTSV4RRFFQ69G5FAV", "ghost@example.com", jwtx.KindAccess,
		time.Hour, testIssuer, time.Now(),
	))
	require.NoError(t, err)

	_, _, err = env.verifier.Verify(ctx, token, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestIsUnauthenticated(t *testing.T) {
	for _, err := range []error{
		ErrMalformedToken,
		ErrInvalidSignature,
		ErrWrongTokenKind,
		ErrTokenExpired,
		ErrTokenRevoked,
		ErrUnknownIdentity,
		ErrAccountDeactivated,
	} {
		require.True(t, IsUnauthenticated(err), err.Error())
	}

	require.False(t, IsUnauthenticated(ErrRateLimited))
	require.False(t, IsUnauthenticated(ErrRecoveryRejected))
	require.False(t, IsUnauthenticated(ErrStoreUnavailable))
}
