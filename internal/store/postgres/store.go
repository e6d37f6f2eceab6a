// Package postgres provides a Postgres-backed mirror of the record store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for the mirror.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store upserts harvested papers into Postgres. Dedup relies on the
// arxiv_id primary key: conflicting rows are left untouched, matching
// the partition store's existing-record-wins semantics.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mirror.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "papers"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "papers"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Merge inserts papers one by one, skipping rows whose arxiv_id already
// exists. It returns the number of rows actually inserted. Expected
// schema:
//
//	CREATE TABLE papers (
//		arxiv_id         TEXT PRIMARY KEY,
//		title            TEXT NOT NULL,
//		abstract         TEXT,
//		authors          JSONB,
//		published        TIMESTAMPTZ NOT NULL,
//		updated          TIMESTAMPTZ,
//		url              TEXT,
//		categories       JSONB,
//		primary_category TEXT
//	);
func (s *Store) Merge(ctx context.Context, papers []harvest.Paper) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("postgres store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	arxiv_id,
	title,
	abstract,
	authors,
	published,
	updated,
	url,
	categories,
	primary_category
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (arxiv_id) DO NOTHING`, s.table)

	added := 0
	for _, p := range papers {
		if p.ArxivID == "" {
			return added, fmt.Errorf("paper is missing arxiv_id")
		}
		authorsJSON, err := json.Marshal(p.Authors)
		if err != nil {
			return added, fmt.Errorf("marshal authors: %w", err)
		}
		categoriesJSON, err := json.Marshal(p.Categories)
		if err != nil {
			return added, fmt.Errorf("marshal categories: %w", err)
		}
		tag, err := s.pool.Exec(ctx, query,
			p.ArxivID,
			p.Title,
			p.Abstract,
			authorsJSON,
			p.Published,
			p.Updated,
			p.URL,
			categoriesJSON,
			p.PrimaryCategory,
		)
		if err != nil {
			return added, fmt.Errorf("insert paper %s: %w", p.ArxivID, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}
