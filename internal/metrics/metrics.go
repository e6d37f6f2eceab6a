// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvesterWindowsTotal        *prometheus.CounterVec
	harvesterPapersFetchedTotal  prometheus.Counter
	harvesterPapersMergedTotal   prometheus.Counter
	harvesterFailuresTotal       prometheus.Counter
	harvesterCyclesTotal         *prometheus.CounterVec
	harvesterCycleDurationSecond prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterWindowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_windows_total",
				Help: "Total query windows processed, labeled by phase and result.",
			},
			[]string{"phase", "result"},
		)

		harvesterPapersFetchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_papers_fetched_total",
				Help: "Total papers returned by the upstream search API.",
			},
		)

		harvesterPapersMergedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_papers_merged_total",
				Help: "Total new papers merged into partition storage.",
			},
		)

		harvesterFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_window_failures_total",
				Help: "Total windows recorded in the failure ledger.",
			},
		)

		harvesterCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_cycles_total",
				Help: "Total scheduler cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterCycleDurationSecond = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_cycle_duration_seconds",
				Help:    "Wall time per completed scheduler cycle.",
				Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveWindow records one processed window.
func ObserveWindow(phase, result string, fetched, merged int) {
	if harvesterWindowsTotal == nil {
		return
	}
	harvesterWindowsTotal.WithLabelValues(phase, result).Inc()
	if fetched > 0 {
		harvesterPapersFetchedTotal.Add(float64(fetched))
	}
	if merged > 0 {
		harvesterPapersMergedTotal.Add(float64(merged))
	}
}

// ObserveFailure increments the failure ledger counter.
func ObserveFailure() {
	if harvesterFailuresTotal == nil {
		return
	}
	harvesterFailuresTotal.Inc()
}

// ObserveCycle records one scheduler cycle with the given outcome.
func ObserveCycle(outcome string, duration time.Duration) {
	if harvesterCyclesTotal == nil {
		return
	}
	harvesterCyclesTotal.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		harvesterCycleDurationSecond.Observe(duration.Seconds())
	}
}
