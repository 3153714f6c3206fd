package tasks

import (
	"context"
	"log"
	"time"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
	"github.com/KnightedIT/freshservice-dashboard/internal/notify"
	"github.com/KnightedIT/freshservice-dashboard/internal/pipeline"
	"github.com/KnightedIT/freshservice-dashboard/internal/runlock"
)

const (
	// DefaultSchedule runs the export daily at 05:00.
	DefaultSchedule = "0 0 5 * * *"
	// DefaultTimeout bounds a single export run.
	DefaultTimeout = 30 * time.Minute
)

type exportRunner interface {
	Run(ctx context.Context) (*pipeline.RunReport, error)
}

// ExportTask runs the time entry export on its schedule. Each slot takes the
// run lock first so parallel scheduler instances cannot export twice, then
// hands the finished report to the webhook notifier and the status endpoint.
type ExportTask struct {
	run      exportRunner
	lock     runlock.Locker
	notifier *notify.Notifier
	schedule string
	timeout  time.Duration
	sink     func(*pipeline.RunReport)
	logger   *log.Logger
}

// NewExportTask creates the export task from its collaborators.
func NewExportTask(pipe *pipeline.Pipeline, cfg *config.ScheduleConfig, lock runlock.Locker, notifier *notify.Notifier) *ExportTask {
	schedule := cfg.Cron
	if schedule == "" {
		schedule = DefaultSchedule
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExportTask{
		run:      pipe,
		lock:     lock,
		notifier: notifier,
		schedule: schedule,
		timeout:  timeout,
		logger:   log.New(log.Writer(), "[EXPORT] ", log.LstdFlags),
	}
}

// SetLogger replaces the task's logger.
func (t *ExportTask) SetLogger(logger *log.Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// SetReportSink registers a callback that receives every finished report,
// used to feed the status endpoint.
func (t *ExportTask) SetReportSink(sink func(*pipeline.RunReport)) {
	t.sink = sink
}

// Name returns the task name
func (t *ExportTask) Name() string {
	return "time-entry-export"
}

// Schedule returns the configured cron expression
func (t *ExportTask) Schedule() string {
	return t.schedule
}

// Timeout returns the maximum time one export may run
func (t *ExportTask) Timeout() time.Duration {
	return t.timeout
}

// Run executes one export slot.
func (t *ExportTask) Run(ctx context.Context) error {
	acquired, err := t.lock.Acquire(ctx)
	if err != nil {
		// The lock is advisory. A broken Redis should not stop exports.
		t.logger.Printf("Lock check failed, running anyway: %v", err)
	} else if !acquired {
		t.logger.Printf("Another instance holds the export lock, skipping this slot")
		return nil
	}
	if err == nil && acquired {
		defer func() {
			// Release with a fresh context so a timed-out run still unlocks
			if rerr := t.lock.Release(context.Background()); rerr != nil {
				t.logger.Printf("Lock release failed, TTL will expire it: %v", rerr)
			}
		}()
	}

	report, runErr := t.run.Run(ctx)
	if report != nil {
		if t.sink != nil {
			t.sink(report)
		}
		if t.notifier != nil {
			// Timed-out runs produce the reports most worth delivering
			if nerr := t.notifier.Send(context.Background(), report); nerr != nil {
				t.logger.Printf("Webhook notification failed: %v", nerr)
			}
		}
	}
	return runErr
}
