package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge
// metrics. Nil functions are skipped.
type StatsSource struct {
	PendingReports     func() int
	ReviewedReports    func() int
	SoftDeletedRecords func() int
}

// StartCollector launches a goroutine that periodically updates gauge
// metrics. It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	// Do an initial collection immediately
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.PendingReports != nil {
		PendingReportsTotal.Set(float64(src.PendingReports()))
	}
	if src.ReviewedReports != nil {
		ReviewedReportsTotal.Set(float64(src.ReviewedReports()))
	}
	if src.SoftDeletedRecords != nil {
		SoftDeletedRecords.Set(float64(src.SoftDeletedRecords()))
	}
}
