// Package cursor persists the crawl cursor, the single timestamp through
// which incremental crawling has been confirmed complete.
package cursor

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/fsutil"
)

type cursorFile struct {
	LastCrawl time.Time `json:"last_crawl"`
}

// Cursor is a file-backed harvest.Cursor. The scheduler is its only
// writer; it saves only after a cycle's merges are durable, so a crash
// mid-cycle makes the next run redo work idempotently rather than skip.
type Cursor struct {
	path     string
	fallback time.Time
	logger   *zap.Logger
}

// New creates a Cursor stored at path. fallback is the coverage start
// returned when no valid value is on disk.
func New(path string, fallback time.Time, logger *zap.Logger) *Cursor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cursor{path: path, fallback: fallback.UTC(), logger: logger}
}

// Load returns the stored cursor value. A missing or unparseable file is
// treated as absent: the fallback is returned and a warning logged.
func (c *Cursor) Load() time.Time {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("cursor file unreadable, using coverage start", zap.String("path", c.path), zap.Error(err))
		}
		return c.fallback
	}
	var f cursorFile
	if err := json.Unmarshal(raw, &f); err != nil || f.LastCrawl.IsZero() {
		c.logger.Warn("cursor file corrupt, using coverage start", zap.String("path", c.path), zap.Error(err))
		return c.fallback
	}
	return f.LastCrawl.UTC()
}

// Save persists t as the new cursor value. The timestamp is normalized
// to UTC before writing, so values carrying a local zone are converted
// rather than stored ambiguously. The write is atomic: either the new
// value lands or the old file remains.
func (c *Cursor) Save(t time.Time) error {
	data, err := json.Marshal(cursorFile{LastCrawl: t.UTC()})
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}
	if err := fsutil.WriteAtomic(c.path, data); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
