// Package main hosts the harvester service entrypoint.
//
// Architecture overview:
//   - Scheduler: internal/scheduler drives the incremental crawl. Once a day at the configured UTC hour it
//     harvests a one-day window delayed a few days behind real time, after first healing any coverage gap
//     left by downtime. All window arithmetic is anchored to the check hour so repeated runs produce the
//     same windows.
//   - Fetch pipeline: internal/fetcher/arxiv pages through the arXiv Atom API with a Colly collector.
//     Inter-request pacing, retry with fixed backoff, and a hard per-window result cap are enforced in the
//     fetcher; the scheduler stays free of transport concerns.
//   - Persistence: internal/store/file merges papers into date-sharded JSON partition files, deduplicated
//     by arXiv identifier with existing records winning. Writes are atomic (temp file + rename). An
//     optional Postgres mirror (internal/store/postgres) upserts the same records for SQL consumers.
//   - Failure handling: windows that fail mid-harvest keep their partial results and land in the
//     failure ledger (internal/ledger) for out-of-band replay; the crawl cursor still advances so one bad
//     window cannot stall coverage.
//   - Fanout: a compact Pub/Sub notification is published after each merge that added records, feeding the
//     downstream filtering pipeline.
//   - Configuration & plumbing: Viper populates config from file/env (HARVESTER_ prefix); zap provides
//     structured logging; Prometheus metrics are served on /metrics by the chi-based ops API, which also
//     exposes /healthz, /readyz, /v1/status, /v1/failures, and /v1/partitions.
//
// Operational notes:
//   - Concurrency model: windows are processed strictly sequentially. The upstream API asks for pacing
//     between requests and the partition store assumes a single writer, so there is no worker pool here.
//   - Shutdown: SIGINT/SIGTERM cancel the root context; an in-flight cycle stops between windows without
//     saving the cursor, and the next start redoes that work idempotently.
//   - Backfill: go run ./cmd/harvester -backfill-start 2024-01-01 -backfill-end 2024-12-31 seeds history
//     month by month before the daily loop starts.
package main
