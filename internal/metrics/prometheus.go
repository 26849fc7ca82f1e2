// Package metrics provides Prometheus metrics for the cross-reference engine
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Import metrics
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xref_imports_total",
			Help: "Total number of import calls",
		},
		[]string{"kind", "mode", "status"},
	)

	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xref_import_rows_total",
			Help: "Rows processed by imports, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xref_import_duration_seconds",
			Help:    "Time taken by a whole import call",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"kind", "mode"},
	)

	// Resolver metrics
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xref_resolutions_total",
			Help: "Resolver calls by caller and result",
		},
		[]string{"caller", "result"},
	)

	// Workflow metrics
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xref_bom_transitions_total",
			Help: "BOM status transitions",
		},
		[]string{"from", "to"},
	)

	SubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xref_bom_submit_duration_seconds",
			Help:    "Time taken to resolve and submit a BOM",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Failure log metrics
	FailuresLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xref_failures_logged_total",
			Help: "Failure log entries written",
		},
		[]string{"source", "type"},
	)
)

// 解析结果标签
const (
	ResultCanonical  = "canonical"
	ResultEquivalent = "equivalent"
	ResultNone       = "none"
	ResultError      = "error"
)

// RecordImport records one finished import call
func RecordImport(kind, mode string, created, updated, failed int, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ImportsTotal.WithLabelValues(kind, mode, status).Inc()
	ImportRows.WithLabelValues(kind, "created").Add(float64(created))
	ImportRows.WithLabelValues(kind, "updated").Add(float64(updated))
	ImportRows.WithLabelValues(kind, "failed").Add(float64(failed))
	ImportDuration.WithLabelValues(kind, mode).Observe(duration.Seconds())
}

// RecordResolution records a single resolver outcome
func RecordResolution(caller, result string) {
	ResolutionsTotal.WithLabelValues(caller, result).Inc()
}

// RecordTransition records a BOM status change
func RecordTransition(from, to string) {
	TransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordFailure records a failure log write
func RecordFailure(source, failureType string) {
	FailuresLogged.WithLabelValues(source, failureType).Inc()
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
