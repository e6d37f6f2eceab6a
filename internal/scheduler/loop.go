package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Run blocks, firing one cycle at the configured hour each day until
// the context is cancelled. Before arming the timer it performs the
// startup reconciliation check: a cursor more than 23 hours stale means
// the process slept through at least one trigger, so a cycle runs
// immediately instead of waiting for the next one.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.clock.Now().UTC().Sub(s.cursor.Load()) > reconcileAfter {
		s.logger.Info("cursor stale at startup, running reconciliation cycle")
		s.runGuarded(ctx)
	}

	for {
		now := s.clock.Now().UTC()
		next := s.NextTrigger(now)
		timer := time.NewTimer(next.Sub(now))
		s.logger.Info("next cycle scheduled", zap.Time("at", next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.runGuarded(ctx)
		}
	}
}

// runGuarded keeps the trigger loop alive across cycle errors; only
// cancellation stops the loop.
func (s *Scheduler) runGuarded(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduling cycle failed", zap.Error(err))
	}
}
