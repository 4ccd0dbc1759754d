package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsehq/pulse/internal/auth/domain"
	"github.com/pulsehq/pulse/pkg/idx"
	"github.com/pulsehq/pulse/pkg/jwtx"
)

var testOrigin = domain.AttemptOrigin{RemoteAddr: "203.0.113.7", ClientSig: "test-agent"}

func TestRecovery_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "a@x.com", "Secret1!")
	code := res.RecoveryCodes[0]

	require.NoError(t, env.recovery.StartRecovery(ctx, "a@x.com"))
	require.NoError(t, env.recovery.VerifyCode(ctx, "a@x.com", code, testOrigin))
	require.NoError(t, env.recovery.ResetPassword(ctx, "a@x.com", code, "Secret2!", "Secret2!", testOrigin))

	// Old password no longer works, new one does
	_, _, err := env.sessions.Login(ctx, "a@x.com", "Secret1!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = env.sessions.Login(ctx, "a@x.com", "Secret2!")
	require.NoError(t, err)
}

func TestRecovery_CodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")
	code := res.RecoveryCodes[0]

	require.NoError(t, env.recovery.ResetPassword(ctx, "alice@example.com", code, "Secret2!", "Secret2!", testOrigin))

	err := env.recovery.ResetPassword(ctx, "alice@example.com", code, "Secret3!", "Secret3!", testOrigin)
	require.ErrorIs(t, err, ErrRecoveryRejected)

	// The other nine codes are untouched
	require.NoError(t, env.recovery.VerifyCode(ctx, "alice@example.com", res.RecoveryCodes[1], testOrigin))
}

func TestRecovery_CodeInputIsNormalized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	// Lowercased and with the separator stripped
	mangled := strings.ToLower(NormalizeCode(res.RecoveryCodes[0]))
	require.NoError(t, env.recovery.VerifyCode(ctx, "alice@example.com", mangled, testOrigin))
}

func TestRecovery_UniformRejection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	// Unknown email and wrong code are indistinguishable
	err := env.recovery.VerifyCode(ctx, "nobody@example.com", "AAAA-AAAA", testOrigin)
	require.ErrorIs(t, err, ErrRecoveryRejected)

	err = env.recovery.VerifyCode(ctx, "alice@example.com", "AAAA-AAAA", testOrigin)
	require.ErrorIs(t, err, ErrRecoveryRejected)

	// So is a deactivated account holding valid codes
	require.NoError(t, env.store.Identities().SetActive(ctx, res.Identity.ID, false))
	err = env.recovery.VerifyCode(ctx, "alice@example.com", res.RecoveryCodes[0], testOrigin)
	require.ErrorIs(t, err, ErrRecoveryRejected)
}

func TestRecovery_PasswordChecksBeforeCodeSpend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")
	code := res.RecoveryCodes[0]

	err := env.recovery.ResetPassword(ctx, "alice@example.com", code, "Secret2!", "Other2!", testOrigin)
	require.ErrorIs(t, err, ErrPasswordMismatch)

	err = env.recovery.ResetPassword(ctx, "alice@example.com", code, "weak", "weak", testOrigin)
	require.ErrorIs(t, err, ErrWeakPassword)

	// The code was not consumed by the rejected requests
	require.NoError(t, env.recovery.ResetPassword(ctx, "alice@example.com", code, "Secret2!", "Secret2!", testOrigin))
}

func TestRecovery_Throttle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "alice@example.com", "Secret1!")

	for i := range DefaultMaxAttempts {
		err := env.recovery.VerifyCode(ctx, "alice@example.com", "AAAA-AAAA", testOrigin)
		require.ErrorIs(t, err, ErrRecoveryRejected, fmt.Sprintf("attempt %d", i+1))
	}

	// The budget is spent: everything on this key now rate limits,
	// including starting a new flow and resetting with a valid code
	err := env.recovery.VerifyCode(ctx, "alice@example.com", "AAAA-AAAA", testOrigin)
	require.ErrorIs(t, err, ErrRateLimited)

	err = env.recovery.StartRecovery(ctx, "alice@example.com")
	require.ErrorIs(t, err, ErrRateLimited)

	err = env.recovery.ResetPassword(ctx, "alice@example.com", "AAAA-AAAA", "Secret2!", "Secret2!", testOrigin)
	require.ErrorIs(t, err, ErrRateLimited)

	// Other identity keys are unaffected
	require.NoError(t, env.recovery.StartRecovery(ctx, "bob@example.com"))
}

func TestRecovery_ThrottleWindowExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	// A burst of attempts that all predate the current window
	stale := time.Now().Add(-2 * time.Hour)
	for range DefaultMaxAttempts {
		err := env.store.RecoveryAttempts().Append(ctx, domain.RecoveryAttempt{
			ID:          idx.New().String(),
			IdentityKey: "alice@example.com",
			Kind:        domain.AttemptCodeVerification,
			CreatedAt:   stale,
		})
		require.NoError(t, err)
	}

	require.NoError(t, env.recovery.VerifyCode(ctx, "alice@example.com", res.RecoveryCodes[0], testOrigin))
}

func TestRecovery_SuccessCountsTowardThrottle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	for i := range DefaultMaxAttempts {
		require.NoError(t, env.recovery.VerifyCode(ctx, "alice@example.com", res.RecoveryCodes[i], testOrigin))
	}

	err := env.recovery.VerifyCode(ctx, "alice@example.com", res.RecoveryCodes[5], testOrigin)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestRecovery_ResetDoesNotRevokeSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	require.NoError(t, env.recovery.ResetPassword(ctx, "alice@example.com", res.RecoveryCodes[0], "Secret2!", "Secret2!", testOrigin))

	// Tokens issued before the reset keep verifying until they expire or
	// are revoked explicitly
	_, _, err := env.verifier.Verify(ctx, res.Tokens.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
}

func TestRegenerateCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com", "Secret1!")

	fresh, err := env.recovery.RegenerateCodes(ctx, res.Identity.ID)
	require.NoError(t, err)
	require.Len(t, fresh, RecoveryCodeCount)
	require.NotElementsMatch(t, res.RecoveryCodes, fresh)

	// Old codes are dead, new ones work
	err = env.recovery.VerifyCode(ctx, "alice@example.com", res.RecoveryCodes[0], testOrigin)
	require.ErrorIs(t, err, ErrRecoveryRejected)

	require.NoError(t, env.recovery.VerifyCode(ctx, "alice@example.com", fresh[0], testOrigin))
}

func TestFormatAndNormalizeCode(t *testing.T) {
	require.Equal(t, "ABCD-EFGH", FormatCode("ABCDEFGH"))
	require.Equal(t, "ABCDEFGH", NormalizeCode("abcd-efgh"))
	require.Equal(t, "ABCDEFGH", NormalizeCode("  AB CD-EF GH  "))
}
