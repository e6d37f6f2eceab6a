package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
)

// Backfill seeds history for a closed range, walking it month by
// calendar month and day by day. It bypasses the gap and delay
// arithmetic entirely and persists the cursor once the whole range has
// been attempted. Window failures land in the ledger like any other.
func (s *Scheduler) Backfill(ctx context.Context, start, end time.Time) ([]harvest.WindowResult, error) {
	cycleID := uuid.NewString()
	log := s.logger.With(zap.String("cycle_id", cycleID), zap.String("mode", "backfill"))
	log.Info("starting bulk backfill", zap.Time("start", start), zap.Time("end", end))

	var results []harvest.WindowResult
	for _, month := range harvest.MonthWindows(start, end) {
		log.Info("backfilling month",
			zap.Int("year", month.Start.Year()),
			zap.String("month", month.Start.Month().String()),
		)
		for _, w := range harvest.SplitWindow(month.Start, month.End) {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			results = append(results, s.harvestWindow(ctx, log, "backfill", cycleID, w))
		}
	}

	if err := s.cursor.Save(s.clock.Now().UTC()); err != nil {
		return results, fmt.Errorf("save cursor: %w", err)
	}
	log.Info("bulk backfill complete", zap.Int("windows", len(results)))
	return results, nil
}
