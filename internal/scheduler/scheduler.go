// Package scheduler orchestrates the incremental crawl: it decides
// which delayed window to query next, heals coverage gaps left by
// downtime, and advances the crawl cursor once a cycle's work is
// durably merged.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
	"github.com/JakeFAU/arxiv-harvester/internal/metrics"
)

const (
	// minCycleGap guards against overlapping or duplicate triggers.
	minCycleGap = time.Hour
	// reconcileAfter triggers an immediate cycle at startup when the
	// cursor is nearly a day stale.
	reconcileAfter = 23 * time.Hour
	// delayDays is how far behind "now" the regular window sits.
	// Submission metadata is not stable immediately; querying too
	// recently yields incomplete or later-revised results.
	delayDays = 4
	// windowDays is the regular window length in days.
	windowDays = 1
)

// Config controls scheduling arithmetic.
type Config struct {
	// CheckHour is the UTC hour-of-day anchoring every window boundary
	// and the daily trigger.
	CheckHour int
	// CoverageStart is the earliest instant the harvester is
	// responsible for; catch-up never reaches before it.
	CoverageStart time.Time
	// Topic names the merge-notification topic.
	Topic string
}

// Scheduler drives fetch+merge over query windows. All collaborators
// are injected; mirror and publisher may be nil. Windows are processed
// strictly sequentially: the upstream API enforces its own pacing and
// the store relies on a single writer.
type Scheduler struct {
	fetcher   harvest.Fetcher
	store     harvest.Store
	mirror    harvest.Store
	ledger    harvest.Ledger
	cursor    harvest.Cursor
	clock     harvest.Clock
	publisher harvest.Publisher
	cfg       Config
	logger    *zap.Logger

	mu   sync.Mutex
	last *harvest.CycleReport
}

// New constructs a Scheduler.
func New(
	fetcher harvest.Fetcher,
	store harvest.Store,
	mirror harvest.Store,
	ledger harvest.Ledger,
	cursor harvest.Cursor,
	clock harvest.Clock,
	publisher harvest.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		fetcher:   fetcher,
		store:     store,
		mirror:    mirror,
		ledger:    ledger,
		cursor:    cursor,
		clock:     clock,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunCycle executes one incremental scheduling cycle: skip guard,
// catch-up over any coverage gap, the regular delayed window, then
// cursor persistence. Window failures land in the ledger and in the
// returned report; they never abort the cycle. The cursor is saved
// unconditionally at the end so upstream flakiness cannot stall
// forward progress, except when the context is cancelled mid-cycle,
// in which case the next run redoes the work idempotently.
func (s *Scheduler) RunCycle(ctx context.Context) (harvest.CycleReport, error) {
	last := s.cursor.Load()
	now := s.clock.Now().UTC()
	report := harvest.CycleReport{CycleID: uuid.NewString(), Started: now}
	log := s.logger.With(zap.String("cycle_id", report.CycleID))

	if now.Sub(last) < minCycleGap {
		report.Skipped = true
		report.Finished = now
		log.Info("last cycle too recent, skipping", zap.Time("last_crawl", last))
		metrics.ObserveCycle("skipped", 0)
		s.setLast(report)
		return report, nil
	}

	anchor := atHour(now, s.cfg.CheckHour)
	regular := harvest.Window{
		Start: anchor.AddDate(0, 0, -delayDays),
		End:   anchor.AddDate(0, 0, -delayDays+windowDays),
	}

	// The window the previous run covered ended three days before its
	// own anchor. Anything between that end and the regular window's
	// start was missed while the process was down.
	lastAnchor := atHour(last, s.cfg.CheckHour)
	lastCovered := lastAnchor.AddDate(0, 0, -delayDays+windowDays)

	catchUpStart := lastCovered
	if catchUpStart.Before(s.cfg.CoverageStart) {
		catchUpStart = s.cfg.CoverageStart
	}
	if catchUpStart.Before(regular.Start) {
		log.Info("coverage gap detected, catching up",
			zap.Time("from", catchUpStart),
			zap.Time("to", regular.Start),
		)
		for _, w := range harvest.SplitWindow(catchUpStart, regular.Start) {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.CatchUp = append(report.CatchUp, s.harvestWindow(ctx, log, "catch_up", report.CycleID, w))
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	log.Info("harvesting regular delayed window", zap.Stringer("window", regular))
	report.Regular = append(report.Regular, s.harvestWindow(ctx, log, "regular", report.CycleID, regular))

	if err := s.cursor.Save(now); err != nil {
		return report, fmt.Errorf("save cursor: %w", err)
	}
	report.Finished = s.clock.Now().UTC()
	metrics.ObserveCycle("completed", report.Finished.Sub(report.Started))
	log.Info("cycle complete",
		zap.Int("windows", len(report.Results())),
		zap.Int("merged", report.Merged()),
		zap.Int("failures", len(report.Failures())),
	)
	s.setLast(report)
	return report, nil
}

// harvestWindow fetches and merges one window, converting any failure
// into a ledger entry and a typed result.
func (s *Scheduler) harvestWindow(
	ctx context.Context,
	log *zap.Logger,
	phase, cycleID string,
	w harvest.Window,
) harvest.WindowResult {
	res := harvest.WindowResult{Window: w}

	papers, err := s.fetcher.Search(ctx, w)
	res.Fetched = len(papers)

	// Partial results fetched before a failure are still merged.
	if len(papers) > 0 {
		added, mergeErr := s.store.Merge(ctx, papers)
		res.Merged = added
		if mergeErr != nil && err == nil {
			err = mergeErr
		}
		if mergeErr == nil {
			s.mirrorMerge(ctx, log, papers)
			if added > 0 {
				s.notify(ctx, log, cycleID, w, added)
			}
		}
	}

	if err != nil {
		res.Err = err
		s.ledger.Record(ctx, w, err.Error())
		log.Error("window harvest failed",
			zap.String("phase", phase),
			zap.Stringer("window", w),
			zap.Error(err),
		)
		metrics.ObserveWindow(phase, "failed", res.Fetched, res.Merged)
		return res
	}

	metrics.ObserveWindow(phase, "ok", res.Fetched, res.Merged)
	log.Info("window harvested",
		zap.String("phase", phase),
		zap.Stringer("window", w),
		zap.Int("fetched", res.Fetched),
		zap.Int("merged", res.Merged),
	)
	return res
}

// mirrorMerge upserts into the secondary store when one is configured.
// Mirror trouble is logged, never propagated: the partition files are
// the source of truth.
func (s *Scheduler) mirrorMerge(ctx context.Context, log *zap.Logger, papers []harvest.Paper) {
	if s.mirror == nil {
		return
	}
	if _, err := s.mirror.Merge(ctx, papers); err != nil {
		log.Warn("mirror merge failed", zap.Error(err))
	}
}

// notify publishes a fire-and-forget merge notice for the downstream
// filtering pipeline.
func (s *Scheduler) notify(ctx context.Context, log *zap.Logger, cycleID string, w harvest.Window, added int) {
	if s.publisher == nil {
		return
	}
	notice := harvest.MergeNotice{
		CycleID:     cycleID,
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Added:       added,
		At:          s.clock.Now().UTC(),
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, notice); err != nil {
		log.Warn("merge notification failed", zap.Error(err))
	}
}

// NextTrigger returns the next daily trigger instant after now.
func (s *Scheduler) NextTrigger(now time.Time) time.Time {
	next := atHour(now.UTC(), s.cfg.CheckHour)
	if !next.After(now.UTC()) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// LastReport returns a copy of the most recent cycle report, or nil
// when no cycle has run yet.
func (s *Scheduler) LastReport() *harvest.CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

func (s *Scheduler) setLast(report harvest.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &report
}

// atHour pins t to the given UTC hour of its calendar day.
func atHour(t time.Time, hour int) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
}
