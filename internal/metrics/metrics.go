// Package metrics exposes Prometheus counters for export runs. They are
// only served when the scheduler's ops endpoint is enabled; one-shot runs
// still update them, they just go unscraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts completed export runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsdash_runs_total",
		Help: "Total number of export runs by status",
	}, []string{"status"})

	// PagesFetched counts filter endpoint pages requested during discovery.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsdash_discovery_pages_total",
		Help: "Total number of ticket filter pages fetched",
	})

	// TicketsDiscovered counts tickets found by the filter query.
	TicketsDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsdash_tickets_discovered_total",
		Help: "Total number of tickets discovered",
	})

	// RecordsCollected counts time-entry rows fetched from the helpdesk.
	RecordsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsdash_time_entries_collected_total",
		Help: "Total number of time entries collected",
	})

	// CollectionFailures counts tickets whose time-entries fetch failed.
	CollectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsdash_collection_failures_total",
		Help: "Total number of per-ticket collection failures",
	})

	// RowsInserted counts rows accepted by the warehouse.
	RowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsdash_rows_inserted_total",
		Help: "Total number of rows loaded into the warehouse",
	})

	// RowsRejected counts rows the warehouse refused on bulk insert.
	RowsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsdash_rows_rejected_total",
		Help: "Total number of rows rejected by the warehouse",
	})

	// RunDuration tracks wall-clock time of whole runs.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fsdash_run_duration_seconds",
		Help:    "Export run duration",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	// LastRunTimestamp is the completion time of the most recent run.
	LastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsdash_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last completed export run",
	})

	// LastRunSuccess is 1 when the most recent run terminated normally.
	// Partial runs count: they ended without a fatal error.
	LastRunSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsdash_last_run_success",
		Help: "Whether the last export run completed without a fatal error",
	})
)

// ObserveRun records one finished run.
func ObserveRun(status string, duration time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(duration.Seconds())
	LastRunTimestamp.SetToCurrentTime()
	if status == "failed" {
		LastRunSuccess.Set(0)
	} else {
		LastRunSuccess.Set(1)
	}
}
