package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
	"github.com/pulsehq/pulse/internal/auth/store"
	"github.com/pulsehq/pulse/pkg/idx"
	"github.com/pulsehq/pulse/pkg/slogx"
)

// Default throttle parameters for recovery attempts.
const (
	DefaultMaxAttempts    = 5
	DefaultAttemptWindow  = time.Hour
	DefaultAuditRetention = 30 * 24 * time.Hour
)

// ThrottleService enforces a sliding-window cap on recovery attempts per
// identity key. The window is computed from the persisted attempt log, so
// the limit survives restarts and is shared between code verification and
// password reset.
type ThrottleService struct {
	Store       store.Store
	MaxAttempts int
	Window      time.Duration
}

// IsRateLimited reports whether the identity key has exhausted its attempt
// budget for the current window. Successful attempts count too: a window
// holds at most MaxAttempts attempts of any outcome.
func (s *ThrottleService) IsRateLimited(ctx context.Context, identityKey string) (bool, error) {
	since := time.Now().Add(-s.Window)
	n, err := s.Store.RecoveryAttempts().CountSince(ctx, identityKey, since)
	if err != nil {
		return false, err
	}
	return n >= s.MaxAttempts, nil
}

// LogAttempt appends an attempt to the audit log. Failures to record are
// logged and swallowed; an audit hiccup must not block the recovery flow
// itself.
func (s *ThrottleService) LogAttempt(ctx context.Context, identityKey string, origin domain.AttemptOrigin, kind string, success bool) {
	err := s.Store.RecoveryAttempts().Append(ctx, domain.RecoveryAttempt{
		ID:          idx.New().String(),
		IdentityKey: identityKey,
		RemoteAddr:  origin.RemoteAddr,
		ClientSig:   origin.ClientSig,
		Kind:        kind,
		Success:     success,
	})
	if err != nil {
		slogx.FromContext(ctx).Error("record recovery attempt",
			slog.String("kind", kind), slog.Any("error", err))
	}
}
