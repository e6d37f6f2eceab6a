// Package file implements the date-partitioned JSON record store.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/fsutil"
	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
)

// Policy routes a paper to its partition file from the publication date
// alone. Years before MonthlyFromYear collapse into one yearly file;
// MonthlyFromYear and later get one file per month.
type Policy struct {
	FilePrefix      string
	FileSuffix      string
	MonthlyFromYear int
}

// FileFor returns the partition file name for a publication date.
func (p Policy) FileFor(published time.Time) string {
	published = published.UTC()
	if published.Year() < p.MonthlyFromYear {
		return fmt.Sprintf("%s_%d_%s.json", p.FilePrefix, published.Year(), p.FileSuffix)
	}
	return fmt.Sprintf("%s_%d_%02d_%s.json", p.FilePrefix, published.Year(), int(published.Month()), p.FileSuffix)
}

// Config captures the parameters for the partition store.
type Config struct {
	BaseDir  string
	Policy   Policy
	Source   string
	Keywords []string
}

// Store merges papers into partition files keyed by publication date.
// Partitions are rewritten wholesale on merge; the write is atomic, so
// a partition is either fully replaced or untouched. Single-writer by
// design: the scheduler processes windows strictly sequentially.
type Store struct {
	cfg    Config
	clock  harvest.Clock
	logger *zap.Logger
}

type partitionMetadata struct {
	LastUpdated time.Time `json:"last_updated"`
	TotalPapers int       `json:"total_papers"`
	Source      string    `json:"source"`
	Keywords    []string  `json:"keywords"`
}

type partitionFile struct {
	Metadata partitionMetadata `json:"metadata"`
	Papers   []harvest.Paper   `json:"papers"`
}

// New creates the Store and its base directory.
func New(cfg Config, clock harvest.Clock, logger *zap.Logger) (*Store, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := fsutil.EnsureDir(cfg.BaseDir); err != nil {
		return nil, fmt.Errorf("prepare base directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{cfg: cfg, clock: clock, logger: logger}, nil
}

// Merge groups papers by partition, filters out identifiers already
// stored, and rewrites each partition that gained papers. Merging the
// same set twice yields the same partition content as merging it once;
// when an incoming paper shares an arxiv_id with a stored one, the
// stored record wins and is never mutated.
func (s *Store) Merge(ctx context.Context, papers []harvest.Paper) (int, error) {
	byFile := map[string][]harvest.Paper{}
	for _, p := range papers {
		name := s.cfg.Policy.FileFor(p.Published)
		byFile[name] = append(byFile[name], p)
	}

	names := make([]string, 0, len(byFile))
	for name := range byFile {
		names = append(names, name)
	}
	sort.Strings(names)

	added := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		n, err := s.mergePartition(name, byFile[name])
		if err != nil {
			return added, err
		}
		added += n
	}
	return added, nil
}

func (s *Store) mergePartition(name string, incoming []harvest.Paper) (int, error) {
	existing := s.load(name)

	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[p.ArxivID] = struct{}{}
	}

	var fresh []harvest.Paper
	for _, p := range incoming {
		if _, dup := seen[p.ArxivID]; dup {
			continue
		}
		seen[p.ArxivID] = struct{}{}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	combined := append(existing, fresh...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Published.After(combined[j].Published)
	})

	out := partitionFile{
		Metadata: partitionMetadata{
			LastUpdated: s.clock.Now().UTC(),
			TotalPapers: len(combined),
			Source:      s.cfg.Source,
			Keywords:    s.cfg.Keywords,
		},
		Papers: combined,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal partition %s: %w", name, err)
	}
	if err := fsutil.WriteAtomic(filepath.Join(s.cfg.BaseDir, name), data); err != nil {
		return 0, fmt.Errorf("write partition %s: %w", name, err)
	}

	s.logger.Info("partition updated",
		zap.String("partition", name),
		zap.Int("added", len(fresh)),
		zap.Int("total", len(combined)),
	)
	return len(fresh), nil
}

// Load returns the papers stored in the named partition. A missing
// partition is empty; a corrupt one is logged and treated as empty
// rather than failing the caller.
func (s *Store) Load(name string) []harvest.Paper {
	return s.load(name)
}

func (s *Store) load(name string) []harvest.Paper {
	raw, err := os.ReadFile(filepath.Join(s.cfg.BaseDir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("partition unreadable, treating as empty", zap.String("partition", name), zap.Error(err))
		}
		return nil
	}
	var f partitionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		s.logger.Warn("partition corrupt, treating as empty", zap.String("partition", name), zap.Error(err))
		return nil
	}
	return f.Papers
}

// Partitions lists the partition files currently on disk.
func (s *Store) Partitions() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("read base directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
