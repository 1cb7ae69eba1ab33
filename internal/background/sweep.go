package background

import (
	"context"
	"log/slog"
	"time"
)

// StaleAccountStore is the slice of the repository the sweep needs.
type StaleAccountStore interface {
	DeleteStaleUnconfirmed(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweepManager periodically removes accounts that never left the "new"
// state. Invite codes are bearer tokens; letting unclaimed ones live
// forever widens the takeover window.
type SweepManager struct {
	store    StaleAccountStore
	logger   *slog.Logger
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(store StaleAccountStore, logger *slog.Logger, interval, maxAge time.Duration) *SweepManager {
	return &SweepManager{
		store:    store,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	sm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			sm.runSweep(ctx)
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-sm.maxAge)

	rowsDeleted, err := sm.store.DeleteStaleUnconfirmed(sweepCtx, cutoff)
	if err != nil {
		sm.logger.Error("failed to sweep stale accounts", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		sm.logger.Info("stale account sweep completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}
