package pipeline

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/KnightedIT/freshservice-dashboard/internal/collector"
)

// Run outcomes. A run is partial when it completed but lost data somewhere:
// an unfinished discovery, failed tickets, or rejected rows.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// RunReport summarizes one export run. It is logged at the end of the run,
// served by the scheduler's status endpoint, and posted to the completion
// webhook when one is configured.
type RunReport struct {
	RunID             string          `json:"run_id"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	DurationSeconds   float64         `json:"duration_seconds"`
	Status            string          `json:"status"`
	TicketsDiscovered int             `json:"tickets_discovered"`
	DiscoveryPartial  bool            `json:"discovery_partial"`
	Collection        collector.Stats `json:"collection"`
	RowsLoaded        int             `json:"rows_loaded"`
	RowsRejected      int             `json:"rows_rejected"`
	Errors            []string        `json:"errors,omitempty"`
}

// NewReport starts a report for a fresh run.
func NewReport() *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Status:    StatusFailed,
	}
}

// Finish stamps the end time and derives the final status. Failure is set
// explicitly by the pipeline; everything else is ok or partial depending on
// whether any stage lost data.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
	r.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()

	if r.Status == StatusFailed {
		return
	}
	if r.DiscoveryPartial || r.Collection.Failed > 0 || r.RowsRejected > 0 || len(r.Errors) > 0 {
		r.Status = StatusPartial
		return
	}
	r.Status = StatusOK
}

// Fail marks the run failed with the terminal error and stamps the end time.
func (r *RunReport) Fail(err error) {
	r.Status = StatusFailed
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
	r.FinishedAt = time.Now()
	r.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()
}

// Duration returns the run's wall-clock time.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns a one-line human-readable digest for logs and the CLI.
func (r *RunReport) Summary() string {
	return fmt.Sprintf("%s: %s tickets, %s entries collected (%d failed), %s rows loaded, %s rejected in %s",
		r.Status,
		humanize.Comma(int64(r.TicketsDiscovered)),
		humanize.Comma(int64(r.Collection.Records)),
		r.Collection.Failed,
		humanize.Comma(int64(r.RowsLoaded)),
		humanize.Comma(int64(r.RowsRejected)),
		r.Duration().Round(time.Second))
}
