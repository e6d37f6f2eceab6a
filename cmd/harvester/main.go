// Package main wires together the harvester service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/api"
	"github.com/JakeFAU/arxiv-harvester/internal/clock/system"
	"github.com/JakeFAU/arxiv-harvester/internal/config"
	"github.com/JakeFAU/arxiv-harvester/internal/cursor"
	"github.com/JakeFAU/arxiv-harvester/internal/fetcher/arxiv"
	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
	"github.com/JakeFAU/arxiv-harvester/internal/ledger"
	"github.com/JakeFAU/arxiv-harvester/internal/logging"
	"github.com/JakeFAU/arxiv-harvester/internal/metrics"
	"github.com/JakeFAU/arxiv-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/arxiv-harvester/internal/scheduler"
	filestore "github.com/JakeFAU/arxiv-harvester/internal/store/file"
	pgstore "github.com/JakeFAU/arxiv-harvester/internal/store/postgres"
)

const (
	cursorFile = "last_crawl.json"
	ledgerFile = "failed_intervals.json"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	backfillStart := flag.String("backfill-start", "", "Backfill range start (YYYY-MM-DD); runs a bulk backfill before serving")
	backfillEnd := flag.String("backfill-end", "", "Backfill range end (YYYY-MM-DD)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	if err := run(ctx, cfg, logger, *backfillStart, *backfillEnd); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("harvester exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, backfillStart, backfillEnd string) error {
	coverageStart, err := cfg.CoverageStart()
	if err != nil {
		return err
	}

	clk := system.New()
	crawlCursor := cursor.New(filepath.Join(cfg.Storage.BaseDir, cursorFile), coverageStart, logger.Named("cursor"))
	failLedger := ledger.New(filepath.Join(cfg.Storage.BaseDir, ledgerFile), clk, logger.Named("ledger"))

	store, err := filestore.New(filestore.Config{
		BaseDir: cfg.Storage.BaseDir,
		Policy: filestore.Policy{
			FilePrefix:      cfg.Storage.FilePrefix,
			FileSuffix:      cfg.Storage.FileSuffix,
			MonthlyFromYear: cfg.Storage.MonthlyFromYear,
		},
		Source:   cfg.Storage.Source,
		Keywords: cfg.Arxiv.Keywords,
	}, clk, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("init partition store: %w", err)
	}

	var mirror harvest.Store
	if cfg.Mirror.Provider == "postgres" {
		pg, pgErr := pgstore.New(ctx, pgstore.Config{DSN: cfg.Mirror.DSN, Table: cfg.Mirror.Table})
		if pgErr != nil {
			return fmt.Errorf("init postgres mirror: %w", pgErr)
		}
		defer pg.Close()
		mirror = pg
		logger.Info("postgres mirror enabled", zap.String("table", cfg.Mirror.Table))
	}

	var publisher harvest.Publisher
	if cfg.PubSub.Enabled {
		pub, pubErr := pubsub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if pubErr != nil {
			return fmt.Errorf("init pubsub publisher: %w", pubErr)
		}
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				logger.Warn("pubsub close failed", zap.Error(closeErr))
			}
		}()
		publisher = pub
		logger.Info("merge notifications enabled", zap.String("topic", cfg.PubSub.TopicName))
	}

	fetcher, err := arxiv.New(arxiv.Config{
		BaseURL:     cfg.Arxiv.BaseURL,
		Keywords:    cfg.Arxiv.Keywords,
		PageSize:    cfg.Arxiv.PageSize,
		Delay:       cfg.RequestDelay(),
		MaxRetries:  cfg.Arxiv.MaxRetries,
		WindowLimit: cfg.Arxiv.WindowLimit,
		UserAgent:   cfg.Arxiv.UserAgent,
		Timeout:     cfg.RequestTimeout(),
	}, logger.Named("fetcher"))
	if err != nil {
		return fmt.Errorf("init arxiv fetcher: %w", err)
	}

	sched := scheduler.New(
		fetcher,
		store,
		mirror,
		failLedger,
		crawlCursor,
		clk,
		publisher,
		scheduler.Config{
			CheckHour:     cfg.Schedule.CheckHour,
			CoverageStart: coverageStart,
			Topic:         cfg.PubSub.TopicName,
		},
		logger.Named("scheduler"),
	)

	if backfillStart != "" || backfillEnd != "" {
		start, end, rangeErr := parseBackfillRange(backfillStart, backfillEnd)
		if rangeErr != nil {
			return rangeErr
		}
		if _, bfErr := sched.Backfill(ctx, start, end); bfErr != nil {
			return fmt.Errorf("backfill: %w", bfErr)
		}
	}

	apiServer := api.NewServer(
		sched,
		failureSource{ledger: failLedger},
		store,
		crawlCursor,
		clk,
		logger.Named("api"),
	)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", zap.String("addr", httpServer.Addr))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("ops server shutdown failed", zap.Error(shutdownErr))
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- sched.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	case err := <-runErr:
		return err
	}
}

func parseBackfillRange(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, errors.New("backfill requires both -backfill-start and -backfill-end")
	}
	start, err := time.ParseInLocation("2006-01-02", startStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse backfill start: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse backfill end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("backfill end precedes start")
	}
	return start, end, nil
}

// failureSource adapts the ledger to the API's read model.
type failureSource struct {
	ledger *ledger.Ledger
}

func (f failureSource) Failures() []api.FailedInterval {
	entries := f.ledger.Entries()
	out := make([]api.FailedInterval, 0, len(entries))
	for _, e := range entries {
		out = append(out, api.FailedInterval{
			Start:      e.Start,
			End:        e.End,
			Error:      e.Error,
			RecordTime: e.RecordTime,
		})
	}
	return out
}
