// Package collector walks discovered ticket IDs in fixed-size batches and
// gathers their time entries. All requests inside a batch run concurrently;
// the batch boundary is a join point, followed by a fixed pause that keeps
// the exporter inside the helpdesk API's rate limit.
package collector

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
	"github.com/KnightedIT/freshservice-dashboard/internal/models"
)

// EntryFetcher fetches the time entries of one ticket.
type EntryFetcher interface {
	TimeEntries(ctx context.Context, ticketID int64) ([]models.TimeEntryRecord, error)
}

// SleepFunc pauses between batches. It returns early with the context error
// when the context is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Stats summarizes one collection pass.
type Stats struct {
	Tickets   int     `json:"tickets"`
	Batches   int     `json:"batches"`
	Pauses    int     `json:"pauses"`
	Records   int     `json:"records"`
	Failed    int     `json:"failed"`
	FailedIDs []int64 `json:"failed_ids,omitempty"`
}

// Collector fetches time entries batch by batch.
type Collector struct {
	fetcher   EntryFetcher
	batchSize int
	pause     time.Duration
	sleep     SleepFunc
	logger    *log.Logger
}

// New creates a Collector using the configured batch size and pause.
func New(fetcher EntryFetcher, cfg *config.CollectorConfig) *Collector {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 70
	}
	pause := cfg.PauseBetween
	if pause <= 0 {
		pause = 60 * time.Second
	}
	return &Collector{
		fetcher:   fetcher,
		batchSize: batchSize,
		pause:     pause,
		sleep:     sleepContext,
		logger:    log.New(log.Writer(), "[COLLECTOR] ", log.LstdFlags),
	}
}

// SetLogger replaces the collector's logger.
func (c *Collector) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// SetSleepFunc overrides the inter-batch pause (useful for testing).
func (c *Collector) SetSleepFunc(sleep SleepFunc) {
	c.sleep = sleep
}

// Collect fetches time entries for every ticket id, preserving batch order
// and within-batch ticket order in the returned rows. A ticket whose fetch
// fails contributes zero rows and is reported in Stats; the batch and the
// run continue. The returned error is non-nil only when the context is
// cancelled, in which case rows gathered so far are still returned.
func (c *Collector) Collect(ctx context.Context, ticketIDs []int64) ([]models.TimeEntryRecord, Stats, error) {
	stats := Stats{Tickets: len(ticketIDs)}
	if len(ticketIDs) == 0 {
		c.logger.Printf("No tickets to collect")
		return nil, stats, nil
	}

	numBatches := (len(ticketIDs) + c.batchSize - 1) / c.batchSize
	c.logger.Printf("Collecting time entries for %d tickets in %d batches of up to %d",
		len(ticketIDs), numBatches, c.batchSize)

	var records []models.TimeEntryRecord
	for start := 0; start < len(ticketIDs); start += c.batchSize {
		select {
		case <-ctx.Done():
			return records, stats, ctx.Err()
		default:
		}

		end := start + c.batchSize
		if end > len(ticketIDs) {
			end = len(ticketIDs)
		}
		batch := ticketIDs[start:end]
		batchNum := start/c.batchSize + 1

		// One request per ticket, all in flight at once. Each goroutine
		// writes only its own slot, so no locking is needed.
		results := make([][]models.TimeEntryRecord, len(batch))
		errs := make([]error, len(batch))
		var wg sync.WaitGroup
		for i, id := range batch {
			wg.Add(1)
			go func(i int, id int64) {
				defer wg.Done()
				results[i], errs[i] = c.fetcher.TimeEntries(ctx, id)
			}(i, id)
		}
		wg.Wait()
		stats.Batches++

		batchRecords := 0
		for i, id := range batch {
			if errs[i] != nil {
				c.logger.Printf("Ticket %d failed: %v", id, errs[i])
				stats.Failed++
				stats.FailedIDs = append(stats.FailedIDs, id)
				continue
			}
			records = append(records, results[i]...)
			batchRecords += len(results[i])
		}
		stats.Records += batchRecords
		c.logger.Printf("Batch %d/%d: %d tickets, %d records, %d failed",
			batchNum, numBatches, len(batch), batchRecords, stats.Failed)

		// No pause after the final batch
		if end < len(ticketIDs) {
			c.logger.Printf("Pausing %s before next batch", c.pause)
			if err := c.sleep(ctx, c.pause); err != nil {
				return records, stats, err
			}
			stats.Pauses++
		}
	}

	c.logger.Printf("Collection complete: %d records from %d tickets, %d failed",
		stats.Records, stats.Tickets, stats.Failed)
	return records, stats, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
