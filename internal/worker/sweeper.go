package worker

import (
	"context"
	"log/slog"
	"time"
)

// startCacheSweeper periodically removes fetched inputs older than the
// configured maximum age. Downloaded videos are only needed for the
// duration of a pipeline run; anything older is reclaimable.
func (w *Worker) startCacheSweeper(ctx context.Context) {
	if w.sweepInterval <= 0 || w.maxCacheAge <= 0 {
		w.logger.Info("Cache sweeper disabled")
		return
	}

	w.logger.Info("Cache sweeper started",
		slog.Duration("interval", w.sweepInterval),
		slog.Duration("max_age", w.maxCacheAge),
	)

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Cache sweeper stopped")
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			if removed := w.fetcher.SweepOlderThan(w.maxCacheAge); removed > 0 {
				w.logger.Info("Cache sweep completed",
					slog.Int("files_removed", removed),
				)
			}
		}
	}
}
