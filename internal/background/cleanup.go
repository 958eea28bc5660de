package background

import (
	"context"
	"log/slog"
	"time"
)

// Pruner drops attempt records that no longer carry lockout state
type Pruner interface {
	Prune(now time.Time, retention time.Duration) int
}

// CleanupManager periodically prunes the in-memory attempt stores. The
// persistent stores keep every record and are never pruned here.
type CleanupManager struct {
	pruners   map[string]Pruner
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager. pruners is keyed by a
// name used in log output.
func NewCleanupManager(
	pruners map[string]Pruner,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		pruners:   pruners,
		logger:    logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce()

	for {
		select {
		case <-ticker.C:
			cm.RunOnce()
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce prunes every store and returns the total number of records removed
func (cm *CleanupManager) RunOnce() int {
	now := cm.now().UTC()
	total := 0
	for name, p := range cm.pruners {
		removed := p.Prune(now, cm.retention)
		if removed > 0 {
			cm.logger.Info("pruned attempt records",
				slog.String("store", name),
				slog.Int("removed", removed))
		}
		total += removed
	}
	return total
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
