// Package metrics exposes Prometheus instrumentation for the catalog and
// worker subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesByState tracks the current catalog population, by state.
	EntriesByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spacesaver_catalog_entries",
		Help: "Current number of catalog entries, by state.",
	}, []string{"state"})

	// ScanPassTotal counts completed scan passes by outcome.
	ScanPassTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesaver_scan_pass_total",
		Help: "Total number of scan passes, by outcome (ok/error).",
	}, []string{"outcome"})

	// ScanFilesTotal counts files the scanner touched in a pass, by effect.
	ScanFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesaver_scan_files_total",
		Help: "Total number of files processed by the scanner, by effect (inserted/refreshed/classified/deduplicated/gone/errors).",
	}, []string{"effect"})

	// EncodeAttemptsTotal counts completed encode attempts by outcome.
	EncodeAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesaver_encode_attempts_total",
		Help: "Total number of encode attempts, by outcome (done/failed).",
	}, []string{"outcome"})

	// EncodeDurationSeconds observes wall-clock time spent per encode job.
	EncodeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spacesaver_encode_duration_seconds",
		Help:    "Wall-clock duration of an encode-verify-replace cycle.",
		Buckets: prometheus.ExponentialBuckets(30, 2, 12),
	})

	// BytesSavedTotal accumulates the size delta (original minus encoded)
	// across every replaced file.
	BytesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacesaver_bytes_saved_total",
		Help: "Cumulative bytes saved by replacing originals with HEVC outputs.",
	})

	// RecoveryOutcomesTotal counts what the startup reconciliation pass did
	// to each inspected entry.
	RecoveryOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesaver_recovery_outcomes_total",
		Help: "Total number of startup recovery outcomes, by kind (gone/reset/salvaged).",
	}, []string{"kind"})

	// WorkerActive reports 1 while the worker holds an IN_PROGRESS entry, 0
	// otherwise.
	WorkerActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spacesaver_worker_active",
		Help: "1 if the worker is currently processing an entry, 0 otherwise.",
	})
)

// SetEntryCounts replaces the entries-by-state gauge vector with counts,
// zeroing any state absent from the map so a drained state doesn't linger
// at its last nonzero value.
func SetEntryCounts(counts map[string]int) {
	for _, state := range []string{"NEW", "SKIP", "PENDING", "QUEUED", "IN_PROGRESS", "DONE", "FAILED", "GONE"} {
		EntriesByState.WithLabelValues(state).Set(float64(counts[state]))
	}
}

// RecordScanPass records a scan pass outcome and its per-effect file counts.
func RecordScanPass(ok bool, inserted, refreshed, classified, deduplicated, gone, errs int) {
	if ok {
		ScanPassTotal.WithLabelValues("ok").Inc()
	} else {
		ScanPassTotal.WithLabelValues("error").Inc()
	}
	ScanFilesTotal.WithLabelValues("inserted").Add(float64(inserted))
	ScanFilesTotal.WithLabelValues("refreshed").Add(float64(refreshed))
	ScanFilesTotal.WithLabelValues("classified").Add(float64(classified))
	ScanFilesTotal.WithLabelValues("deduplicated").Add(float64(deduplicated))
	ScanFilesTotal.WithLabelValues("gone").Add(float64(gone))
	ScanFilesTotal.WithLabelValues("errors").Add(float64(errs))
}

// RecordRecovery records the startup reconciliation pass's outcome counts.
func RecordRecovery(gone, reset, salvaged int) {
	RecoveryOutcomesTotal.WithLabelValues("gone").Add(float64(gone))
	RecoveryOutcomesTotal.WithLabelValues("reset").Add(float64(reset))
	RecoveryOutcomesTotal.WithLabelValues("salvaged").Add(float64(salvaged))
}
