// Package harvest defines the core types and interfaces for the arXiv
// paper harvesting pipeline. It includes the paper record model, query
// windows, and the collaborator interfaces the scheduler orchestrates.
package harvest

import (
	"context"
	"fmt"
	"time"
)

// Paper is one harvested arXiv record. Papers are immutable once merged
// into a partition; the store only ever adds new identifiers.
type Paper struct {
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	Authors         []string  `json:"authors"`
	Published       time.Time `json:"published"`
	Updated         time.Time `json:"updated"`
	ArxivID         string    `json:"arxiv_id"`
	URL             string    `json:"url"`
	Categories      []string  `json:"categories"`
	PrimaryCategory string    `json:"primary_category"`
}

// Window is a bounded UTC time range used as a query unit against arXiv.
type Window struct {
	Start time.Time
	End   time.Time
}

// String renders the window bounds for logs and ledger entries.
func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Fetcher queries the upstream search API for papers submitted within a
// window. Implementations handle their own paging, pacing and retries.
// A non-nil error may be accompanied by the papers fetched before the
// failure; callers merge those partial results and record the failure.
type Fetcher interface {
	Search(ctx context.Context, w Window) ([]Paper, error)
}

// Store persists papers, deduplicating by arxiv_id. Merge returns the
// number of papers that were actually new.
type Store interface {
	Merge(ctx context.Context, papers []Paper) (int, error)
}

// Ledger records windows whose harvest failed irrecoverably so they can
// be replayed out of band. Implementations log their own write failures
// rather than surfacing them; recording a failure never blocks progress.
type Ledger interface {
	Record(ctx context.Context, w Window, cause string)
}

// Cursor is the durable "last successful cycle" timestamp. Load falls
// back to the configured coverage start when no valid value is stored.
type Cursor interface {
	Load() time.Time
	Save(t time.Time) error
}

// Clock abstracts time.Now so scheduling arithmetic is testable.
type Clock interface {
	Now() time.Time
}

// Publisher sends fire-and-forget notifications to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// MergeNotice is published after a window's merge adds new papers, so
// the downstream filtering pipeline can pick them up.
type MergeNotice struct {
	CycleID     string    `json:"cycle_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Added       int       `json:"added"`
	At          time.Time `json:"at"`
}

// WindowResult is the typed outcome of harvesting one window. Failures
// are carried as values so a cycle can aggregate them instead of
// aborting on the first bad window.
type WindowResult struct {
	Window  Window
	Fetched int
	Merged  int
	Err     error
}

// Failed reports whether the window's fetch or merge errored.
func (r WindowResult) Failed() bool {
	return r.Err != nil
}

// CycleReport aggregates the outcome of one scheduler cycle.
type CycleReport struct {
	CycleID  string
	Started  time.Time
	Finished time.Time
	Skipped  bool
	CatchUp  []WindowResult
	Regular  []WindowResult
}

// Results returns all window results of the cycle, catch-up first.
func (c CycleReport) Results() []WindowResult {
	out := make([]WindowResult, 0, len(c.CatchUp)+len(c.Regular))
	out = append(out, c.CatchUp...)
	out = append(out, c.Regular...)
	return out
}

// Merged sums the papers added across all windows of the cycle.
func (c CycleReport) Merged() int {
	total := 0
	for _, r := range c.Results() {
		total += r.Merged
	}
	return total
}

// Failures returns the window results that errored.
func (c CycleReport) Failures() []WindowResult {
	var out []WindowResult
	for _, r := range c.Results() {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}
