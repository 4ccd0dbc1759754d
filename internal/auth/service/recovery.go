package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
	"github.com/pulsehq/pulse/internal/auth/notify"
	"github.com/pulsehq/pulse/internal/auth/store"
	"github.com/pulsehq/pulse/pkg/cryptox"
	"github.com/pulsehq/pulse/pkg/idx"
	"github.com/pulsehq/pulse/pkg/slogx"
	"github.com/pulsehq/pulse/pkg/validate"
)

const (
	// RecoveryCodeCount is how many single-use codes an identity holds.
	RecoveryCodeCount = 10

	// recoveryCodeChars is the raw code length before formatting.
	recoveryCodeChars = 8
)

// RecoveryService runs account recovery: generating single-use codes,
// verifying them and resetting the password against one. Every failure
// cause except throttling collapses into ErrRecoveryRejected so responses
// cannot be used to probe which accounts exist.
type RecoveryService struct {
	Store    store.Store
	Notifier notify.Notifier
	Throttle *ThrottleService
}

// FormatCode renders a raw code as the XXXX-XXXX form shown to users.
func FormatCode(raw string) string {
	if len(raw) != recoveryCodeChars {
		return raw
	}
	return raw[:4] + "-" + raw[4:]
}

// NormalizeCode undoes user-side mangling: case, separators, whitespace.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// provisionRecoveryCodes mints a full set of codes for the identity inside
// the given transaction and returns their formatted plaintexts. Callers own
// handing them to the user; they are not recoverable afterwards.
func provisionRecoveryCodes(ctx context.Context, tx store.Tx, identityID string) ([]string, error) {
	codes := make([]string, 0, RecoveryCodeCount)
	for range RecoveryCodeCount {
		raw, err := cryptox.GenerateCode(recoveryCodeChars)
		if err != nil {
			return nil, err
		}

		err = tx.RecoveryCodes().CreateRecoveryCode(ctx, domain.RecoveryCode{
			ID:         idx.New().String(),
			IdentityID: identityID,
			CodeHash:   cryptox.FingerprintToken(raw),
		})
		if err != nil {
			return nil, err
		}

		codes = append(codes, FormatCode(raw))
	}
	return codes, nil
}

// RegenerateCodes replaces the identity's entire code set. Old codes stop
// working immediately, used or not.
func (s *RecoveryService) RegenerateCodes(ctx context.Context, identityID string) ([]string, error) {
	var codes []string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RecoveryCodes().DeleteByIdentity(ctx, identityID); err != nil {
			return err
		}
		var err error
		codes, err = provisionRecoveryCodes(ctx, tx, identityID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.Notifier.Publish(ctx, notify.Event{
		Kind:       notify.KindCodesRegenerated,
		Message:    "recovery codes regenerated",
		IdentityID: identityID,
		At:         time.Now(),
	})

	return codes, nil
}

// StartRecovery opens a recovery flow for the submitted email. It only
// enforces the throttle; whether the email maps to an account is never
// revealed at this step.
func (s *RecoveryService) StartRecovery(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	limited, err := s.Throttle.IsRateLimited(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// VerifyCode checks a recovery code against the identity's unused set
// without consuming it. The attempt counts toward the throttle whether it
// succeeds or not.
func (s *RecoveryService) VerifyCode(ctx context.Context, email, code string, origin domain.AttemptOrigin) error {
	email = strings.ToLower(strings.TrimSpace(email))

	limited, err := s.Throttle.IsRateLimited(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if limited {
		return ErrRateLimited
	}

	matched := false
	identity, err := s.Store.Identities().GetIdentityByEmail(ctx, email)
	if err == nil && identity.Active {
		match, ferr := s.findUnusedCode(ctx, s.Store, identity.ID, code)
		if ferr != nil {
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, ferr)
		}
		matched = match.ID != ""
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.Throttle.LogAttempt(ctx, email, origin, domain.AttemptCodeVerification, matched)

	if !matched {
		return ErrRecoveryRejected
	}
	return nil
}

// ResetPassword consumes a recovery code and installs a new password. The
// claim, the hash update and the audit row commit together; a concurrent
// reset racing on the same code loses the claim and is rejected like any
// other bad attempt.
func (s *RecoveryService) ResetPassword(ctx context.Context, email, code, newPassword, confirm string, origin domain.AttemptOrigin) error {
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))

	limited, err := s.Throttle.IsRateLimited(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if limited {
		return ErrRateLimited
	}

	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	if err := validate.PasswordStrength(newPassword); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	identity, err := s.Store.Identities().GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Throttle.LogAttempt(ctx, email, origin, domain.AttemptPasswordReset, false)
			return ErrRecoveryRejected
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !identity.Active {
		s.Throttle.LogAttempt(ctx, email, origin, domain.AttemptPasswordReset, false)
		return ErrRecoveryRejected
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	rejected := errors.New("reset rejected")
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		match, err := s.findUnusedCode(ctx, tx, identity.ID, code)
		if err != nil {
			return err
		}
		if match.ID == "" {
			return rejected
		}

		won, err := tx.RecoveryCodes().ClaimRecoveryCode(ctx, match.ID, time.Now())
		if err != nil {
			return err
		}
		if !won {
			return rejected
		}

		if err := tx.Identities().UpdatePasswordHash(ctx, identity.ID, hash); err != nil {
			return err
		}

		return tx.RecoveryAttempts().Append(ctx, domain.RecoveryAttempt{
			ID:          idx.New().String(),
			IdentityKey: email,
			RemoteAddr:  origin.RemoteAddr,
			ClientSig:   origin.ClientSig,
			Kind:        domain.AttemptPasswordReset,
			Success:     true,
		})
	})
	if err != nil {
		if errors.Is(err, rejected) {
			s.Throttle.LogAttempt(ctx, email, origin, domain.AttemptPasswordReset, false)
			return ErrRecoveryRejected
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	l.Info("password reset via recovery code", slog.String("identity_id", identity.ID))
	s.Notifier.Publish(ctx, notify.Event{
		Kind:       notify.KindPasswordReset,
		Message:    "password reset via recovery code",
		IdentityID: identity.ID,
		At:         time.Now(),
	})

	return nil
}

// findUnusedCode fingerprints the submitted code and scans the identity's
// unused codes for it. Comparison is constant time per code and every code
// is visited, so a hit takes as long as a miss.
func (s *RecoveryService) findUnusedCode(ctx context.Context, st store.Store, identityID, code string) (domain.RecoveryCode, error) {
	fingerprint := cryptox.FingerprintToken(NormalizeCode(code))

	codes, err := st.RecoveryCodes().ListUnusedByIdentity(ctx, identityID)
	if err != nil {
		return domain.RecoveryCode{}, err
	}

	var match domain.RecoveryCode
	for _, c := range codes {
		if subtle.ConstantTimeCompare([]byte(fingerprint), []byte(c.CodeHash)) == 1 {
			match = c
		}
	}
	return match, nil
}
