package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsehq/pulse/internal/auth/store"
)

// HousekeepingService periodically prunes rows the system no longer needs:
// revocation ledger entries for tokens that have since expired, and stale
// recovery attempt audit rows.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration // how long recovery attempt rows are kept

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. A non-positive
// interval defaults to 1 hour; a non-positive retention defaults to 30 days.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = DefaultAuditRetention
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until an in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs one sweep. Each pruner is independent; a failure in one
// won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()

	if err := s.Store.RevokedTokens().DeleteExpired(ctx); err != nil {
		s.Logger.Error("failed to prune expired revocations", "error", err)
	} else {
		s.Logger.Debug("pruned expired revocations")
	}

	cutoff := time.Now().Add(-s.Retention)
	if err := s.Store.RecoveryAttempts().DeleteOlderThan(ctx, cutoff); err != nil {
		s.Logger.Error("failed to prune recovery attempts", "error", err)
	} else {
		s.Logger.Debug("pruned recovery attempts", "cutoff", cutoff)
	}
}
