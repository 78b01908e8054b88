// Package maintenance runs periodic housekeeping against the store.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredCacheCleaner removes expired cache entries and reports how many.
type ExpiredCacheCleaner interface {
	ClearExpiredCache(ctx context.Context) (int, error)
}

// SweepObserver is notified after each successful sweep.
type SweepObserver interface {
	ObserveSweep(removed int)
}

// Sweeper periodically drops expired cache entries. Reads already ignore
// expired rows; sweeping only bounds table growth.
type Sweeper struct {
	cleaner  ExpiredCacheCleaner
	interval time.Duration
	logger   *slog.Logger
	observer SweepObserver
}

// NewSweeper builds a sweeper. observer may be nil.
func NewSweeper(cleaner ExpiredCacheCleaner, interval time.Duration, logger *slog.Logger, observer SweepObserver) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger.With("component", "cache_sweeper"),
		observer: observer,
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	removed, err := s.cleaner.ClearExpiredCache(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clear expired cache", "error", err)
		return 0, err
	}
	if s.observer != nil {
		s.observer.ObserveSweep(removed)
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "expired cache entries removed", "removed", removed)
	} else {
		s.logger.DebugContext(ctx, "no expired cache entries")
	}
	return removed, nil
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// disables sweeping and Run returns immediately. Sweep failures are logged
// and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.InfoContext(ctx, "cache sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "cache sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "cache sweeper stopped")
			return
		case <-ticker.C:
			// RunOnce logs its own failures.
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() != nil {
				s.logger.InfoContext(ctx, "cache sweeper stopped")
				return
			}
		}
	}
}
