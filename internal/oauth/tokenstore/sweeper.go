package tokenstore

import (
	"context"
	"time"

	"github.com/Tiisu/SourceWiki-sub001/internal/observability/logger"
)

// RunSweeper drives periodic sweeps until the context is cancelled. It runs
// on its own goroutine, independent of request handling.
func RunSweeper(ctx context.Context, s Store, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	log := logger.Named("tokenstore.sweeper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				log.Warn("sweep failed", logger.Err(err))
				continue
			}
			if removed > 0 {
				log.Debug("swept expired handshakes", logger.Count(removed))
			}
		}
	}
}
