// Package ledger keeps a durable log of query windows whose harvest
// failed, for offline inspection and replay.
package ledger

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/fsutil"
	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
	"github.com/JakeFAU/arxiv-harvester/internal/metrics"
)

// Entry is one recorded failure. Entries are never deduplicated or
// truncated; the ledger is the out-of-band retry queue.
type Entry struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Error      string    `json:"error"`
	RecordTime time.Time `json:"record_time"`
}

// Ledger is a file-backed harvest.Ledger. Each Record call reads the
// existing list, appends, and writes the whole file back atomically.
type Ledger struct {
	path   string
	clock  harvest.Clock
	logger *zap.Logger
}

// New creates a Ledger stored at path.
func New(path string, clock harvest.Clock, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{path: path, clock: clock, logger: logger}
}

// Record appends a failure entry for the window. Write failures are
// logged, never surfaced: a broken ledger must not stall the scheduler.
func (l *Ledger) Record(_ context.Context, w harvest.Window, cause string) {
	entries := l.read()
	entries = append(entries, Entry{
		Start:      w.Start,
		End:        w.End,
		Error:      cause,
		RecordTime: l.clock.Now().UTC(),
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		l.logger.Error("marshal failure ledger", zap.Error(err))
		return
	}
	if err := fsutil.WriteAtomic(l.path, data); err != nil {
		l.logger.Error("write failure ledger", zap.String("path", l.path), zap.Error(err))
		return
	}
	metrics.ObserveFailure()
	l.logger.Warn("recorded failed window",
		zap.Time("start", w.Start),
		zap.Time("end", w.End),
		zap.String("error", cause),
	)
}

// Entries returns all recorded failures, oldest first.
func (l *Ledger) Entries() []Entry {
	return l.read()
}

// read treats a missing or unparseable file as an empty list.
func (l *Ledger) read() []Entry {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("failure ledger unreadable, starting empty", zap.Error(err))
		}
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		l.logger.Warn("failure ledger corrupt, starting empty", zap.Error(err))
		return nil
	}
	return entries
}
