// Package api exposes the read-only operational HTTP interface for the
// harvester service.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
	"github.com/JakeFAU/arxiv-harvester/internal/metrics"
)

// StatusSource reports the scheduler's view of the crawl.
type StatusSource interface {
	LastReport() *harvest.CycleReport
	NextTrigger(now time.Time) time.Time
}

// FailureSource lists the recorded failed intervals.
type FailureSource interface {
	Failures() []FailedInterval
}

// PartitionSource lists the partition files currently on disk.
type PartitionSource interface {
	Partitions() ([]string, error)
}

// FailedInterval is one ledger entry as served over HTTP.
type FailedInterval struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Error      string    `json:"error"`
	RecordTime time.Time `json:"record_time"`
}

// Server wires HTTP handlers to the scheduler and stores. All endpoints
// are read-only; the crawl itself is driven by the clock, not the API.
type Server struct {
	router     chi.Router
	status     StatusSource
	failures   FailureSource
	partitions PartitionSource
	cursor     harvest.Cursor
	clock      harvest.Clock
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	status StatusSource,
	failures FailureSource,
	partitions PartitionSource,
	cursor harvest.Cursor,
	clock harvest.Clock,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		status:     status,
		failures:   failures,
		partitions: partitions,
		cursor:     cursor,
		clock:      clock,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/failures", s.getFailures)
		r.Get("/partitions", s.getPartitions)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// File-backed state is always reachable once the process is up.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now().UTC()
	resp := statusResponse{
		LastCrawl:   s.cursor.Load(),
		NextTrigger: s.status.NextTrigger(now),
		Now:         now,
	}
	if report := s.status.LastReport(); report != nil {
		resp.LastCycle = &cycleDTO{
			CycleID:        report.CycleID,
			Started:        report.Started,
			Finished:       report.Finished,
			Skipped:        report.Skipped,
			CatchUpWindows: len(report.CatchUp),
			RegularWindows: len(report.Regular),
			PapersMerged:   report.Merged(),
			Failures:       len(report.Failures()),
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getFailures(w http.ResponseWriter, _ *http.Request) {
	entries := s.failures.Failures()
	if entries == nil {
		entries = []FailedInterval{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"failures": entries})
}

func (s *Server) getPartitions(w http.ResponseWriter, _ *http.Request) {
	names, err := s.partitions.Partitions()
	if err != nil {
		s.logger.Error("list partitions failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list partitions")
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"partitions": names})
}

type statusResponse struct {
	LastCrawl   time.Time `json:"last_crawl"`
	NextTrigger time.Time `json:"next_trigger"`
	Now         time.Time `json:"now"`
	LastCycle   *cycleDTO `json:"last_cycle,omitempty"`
}

type cycleDTO struct {
	CycleID        string    `json:"cycle_id"`
	Started        time.Time `json:"started"`
	Finished       time.Time `json:"finished"`
	Skipped        bool      `json:"skipped"`
	CatchUpWindows int       `json:"catch_up_windows"`
	RegularWindows int       `json:"regular_windows"`
	PapersMerged   int       `json:"papers_merged"`
	Failures       int       `json:"failures"`
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
