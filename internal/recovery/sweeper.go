package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"trustline/internal/metrics"
)

// RunSweeper periodically purges expired soft-delete records until the
// context is cancelled. The sweep is idempotent and safe to run
// concurrently with live restores, so the cadence is independent of
// request traffic.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("recovery: sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("recovery: sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.SweepExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("recovery: sweep failed")
				continue
			}
			metrics.SweepRemovedTotal.Add(float64(removed))
			if removed > 0 {
				log.Info().Int("removed", removed).Msg("recovery: expired records purged")
			}
		}
	}
}
