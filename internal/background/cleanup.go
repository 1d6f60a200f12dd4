package background

import (
	"context"
	"log/slog"
	"time"
)

// LockoutCleaner deletes expired auto-unlock lockout rows
type LockoutCleaner interface {
	CleanupExpiredLockouts(ctx context.Context) (int64, error)
}

// LedgerCleaner deletes ledger rows past their retention horizon
type LedgerCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// RequestLogCleaner deletes stale rate-limit events
type RequestLogCleaner interface {
	CleanupStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CleanupManager periodically compacts expired security state. Lock expiry is
// evaluated lazily on read; this task only reclaims storage and is never
// required for correctness.
type CleanupManager struct {
	lockouts   LockoutCleaner
	ledger     LedgerCleaner
	requestLog RequestLogCleaner
	logger     *slog.Logger
	interval   time.Duration
	stopCh     chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	lockouts LockoutCleaner,
	ledger LedgerCleaner,
	requestLog RequestLogCleaner,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		lockouts:   lockouts,
		ledger:     ledger,
		requestLog: requestLog,
		logger:     logger,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup compacts each security table in turn
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if deleted, err := cm.lockouts.CleanupExpiredLockouts(cleanupCtx); err != nil {
		cm.logger.Error("failed to cleanup expired lockouts", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("expired lockout cleanup completed", slog.Int64("rows_deleted", deleted))
	}

	if deleted, err := cm.ledger.DeleteExpired(cleanupCtx); err != nil {
		cm.logger.Error("failed to cleanup expired attempts", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("attempt retention cleanup completed", slog.Int64("rows_deleted", deleted))
	}

	if deleted, err := cm.requestLog.CleanupStale(cleanupCtx, 1*time.Hour); err != nil {
		cm.logger.Error("failed to cleanup request log", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("request log cleanup completed", slog.Int64("rows_deleted", deleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
