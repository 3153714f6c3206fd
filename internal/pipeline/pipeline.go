package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/KnightedIT/freshservice-dashboard/internal/collector"
	"github.com/KnightedIT/freshservice-dashboard/internal/config"
	"github.com/KnightedIT/freshservice-dashboard/internal/metrics"
	"github.com/KnightedIT/freshservice-dashboard/internal/models"
	"github.com/KnightedIT/freshservice-dashboard/internal/secrets"
	"github.com/KnightedIT/freshservice-dashboard/internal/warehouse"
)

// Source is the helpdesk side of the pipeline: ticket discovery plus the
// per-ticket time entry fetch the collector fans out over.
type Source interface {
	// FilteredTicketIDs returns the ticket IDs matching the configured
	// filter. On error it returns the IDs gathered so far together with
	// the error.
	FilteredTicketIDs(ctx context.Context) ([]int64, error)

	// TimeEntries returns all time entries recorded against one ticket.
	TimeEntries(ctx context.Context, ticketID int64) ([]models.TimeEntryRecord, error)

	// Ping verifies the API is reachable with the current credential.
	Ping(ctx context.Context) error
}

// SourceFactory builds a Source once the API credential has been fetched.
// The credential is resolved inside the run so that a revoked or missing
// secret surfaces as a run failure rather than a startup crash loop.
type SourceFactory func(apiKey string) Source

// Pipeline runs one full export: fetch the credential, discover tickets,
// collect their time entries, and replace the warehouse table with the
// result. Stages run strictly in sequence.
type Pipeline struct {
	provider  secrets.Provider
	newSource SourceFactory
	wh        warehouse.Warehouse
	cfg       *config.Config
	logger    *log.Logger

	newCollector func(fetcher collector.EntryFetcher) *collector.Collector
}

// New builds a pipeline from its four stage dependencies.
func New(provider secrets.Provider, newSource SourceFactory, wh warehouse.Warehouse, cfg *config.Config) *Pipeline {
	p := &Pipeline{
		provider:  provider,
		newSource: newSource,
		wh:        wh,
		cfg:       cfg,
		logger:    log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
	p.newCollector = func(fetcher collector.EntryFetcher) *collector.Collector {
		return collector.New(fetcher, &cfg.Collector)
	}
	return p
}

// SetLogger replaces the default logger.
func (p *Pipeline) SetLogger(logger *log.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// SetCollectorFactory replaces how the collector is built from a fetcher.
// Useful for testing.
func (p *Pipeline) SetCollectorFactory(fn func(fetcher collector.EntryFetcher) *collector.Collector) {
	if fn != nil {
		p.newCollector = fn
	}
}

// Run executes one export and always returns a report, failed runs included.
// The returned error is non-nil only when the run terminated early: a
// credential failure, a table admin failure, a cancelled context, or a
// strict policy turning a recoverable error fatal.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := NewReport()
	p.logger.Printf("Run %s starting", report.RunID)

	apiKey, err := p.provider.Fetch(ctx)
	if err != nil {
		return p.fail(report, fmt.Errorf("credential stage: %w", err))
	}
	source := p.newSource(apiKey)

	ids, err := source.FilteredTicketIDs(ctx)
	if err != nil {
		if p.cfg.Pipeline.StrictDiscovery {
			return p.fail(report, fmt.Errorf("discovery stage: %w", err))
		}
		p.logger.Printf("Discovery stopped early, continuing with %d tickets: %v", len(ids), err)
		report.DiscoveryPartial = true
		report.Errors = append(report.Errors, err.Error())
	}
	report.TicketsDiscovered = len(ids)
	metrics.TicketsDiscovered.Add(float64(len(ids)))

	records, stats, err := p.newCollector(source).Collect(ctx, ids)
	report.Collection = stats
	metrics.RecordsCollected.Add(float64(stats.Records))
	metrics.CollectionFailures.Add(float64(stats.Failed))
	if err != nil {
		return p.fail(report, fmt.Errorf("collection stage: %w", err))
	}
	for _, e := range stats.FailedIDs {
		report.Errors = append(report.Errors, fmt.Sprintf("ticket %d: time entries not collected", e))
	}

	if err := p.load(ctx, report, records); err != nil {
		return p.fail(report, err)
	}
	metrics.RowsInserted.Add(float64(report.RowsLoaded))

	report.Finish()
	metrics.ObserveRun(report.Status, report.Duration())
	p.logger.Printf("Run %s finished %s", report.RunID, report.Summary())
	return report, nil
}

// load replaces the warehouse table and bulk-inserts the collected records.
// Table admin failures are always fatal. Insert failures are fatal only under
// the strict_insert policy; otherwise they are logged and the run goes on.
func (p *Pipeline) load(ctx context.Context, report *RunReport, records []models.TimeEntryRecord) error {
	if err := p.wh.Recreate(ctx); err != nil {
		return fmt.Errorf("load stage: %w", err)
	}

	err := p.wh.Insert(ctx, records)
	if err == nil {
		report.RowsLoaded = len(records)
		return nil
	}

	var partial *warehouse.PartialInsertError
	if errors.As(err, &partial) {
		for _, row := range partial.Rejected {
			p.logger.Printf("Row %d rejected by %s: %s", row.Index, partial.Table, strings.Join(row.Reasons, "; "))
		}
		report.RowsLoaded = partial.Accepted()
		report.RowsRejected = len(partial.Rejected)
		report.Errors = append(report.Errors, err.Error())
		metrics.RowsRejected.Add(float64(report.RowsRejected))
		if p.cfg.Pipeline.StrictInsert {
			return fmt.Errorf("load stage: %w", err)
		}
		return nil
	}

	report.Errors = append(report.Errors, err.Error())
	if p.cfg.Pipeline.StrictInsert {
		return fmt.Errorf("load stage: %w", err)
	}
	p.logger.Printf("Insert failed, table left empty for this run: %v", err)
	return nil
}

// Check verifies every stage dependency is reachable without exporting
// anything: the credential resolves, the helpdesk API answers, and the
// warehouse responds. Used by the check command and start-up probes.
func (p *Pipeline) Check(ctx context.Context) error {
	apiKey, err := p.provider.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("credential check: %w", err)
	}
	if err := p.newSource(apiKey).Ping(ctx); err != nil {
		return fmt.Errorf("helpdesk check: %w", err)
	}
	if err := p.wh.HealthCheck(ctx); err != nil {
		return fmt.Errorf("warehouse check: %w", err)
	}
	return nil
}

func (p *Pipeline) fail(report *RunReport, err error) (*RunReport, error) {
	report.Fail(err)
	metrics.ObserveRun(report.Status, report.Duration())
	p.logger.Printf("Run %s failed: %v", report.RunID, err)
	return report, err
}
