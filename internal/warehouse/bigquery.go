package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
	"github.com/KnightedIT/freshservice-dashboard/internal/models"
)

// timeEntrySchema is the fixed 14-column destination schema. Temporal
// columns are TIMESTAMP; the API strings are handed to BigQuery verbatim
// and parsed server-side on insert.
var timeEntrySchema = bigquery.Schema{
	{Name: "ticket_id", Type: bigquery.IntegerFieldType},
	{Name: "id", Type: bigquery.IntegerFieldType},
	{Name: "created_at", Type: bigquery.TimestampFieldType},
	{Name: "updated_at", Type: bigquery.TimestampFieldType},
	{Name: "start_time", Type: bigquery.TimestampFieldType},
	{Name: "timer_running", Type: bigquery.BooleanFieldType},
	{Name: "billable", Type: bigquery.BooleanFieldType},
	{Name: "time_spent", Type: bigquery.StringFieldType},
	{Name: "executed_at", Type: bigquery.TimestampFieldType},
	{Name: "task_id", Type: bigquery.IntegerFieldType},
	{Name: "workspace_id", Type: bigquery.IntegerFieldType},
	{Name: "note", Type: bigquery.StringFieldType},
	{Name: "agent_id", Type: bigquery.IntegerFieldType},
	{Name: "custom_fields", Type: bigquery.StringFieldType},
}

// BigQueryWarehouse loads rows into a BigQuery table.
type BigQueryWarehouse struct {
	client   *bigquery.Client
	dataset  string
	table    string
	location string
	logger   *log.Logger
}

// NewBigQuery creates a warehouse bound to the configured project, dataset
// and table.
func NewBigQuery(ctx context.Context, cfg *config.BigQueryConfig) (*BigQueryWarehouse, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}

	return &BigQueryWarehouse{
		client:   client,
		dataset:  cfg.Dataset,
		table:    cfg.Table,
		location: cfg.Location,
		logger:   log.New(log.Writer(), "[WAREHOUSE] ", log.LstdFlags),
	}, nil
}

// SetLogger replaces the warehouse's logger.
func (w *BigQueryWarehouse) SetLogger(logger *log.Logger) {
	w.logger = logger
}

// Name returns the backend identifier.
func (w *BigQueryWarehouse) Name() string {
	return "bigquery"
}

func (w *BigQueryWarehouse) ref() string {
	return fmt.Sprintf("%s.%s", w.dataset, w.table)
}

// Recreate drops the destination table if present and creates it fresh. A
// missing table is expected on first runs and logged, not treated as an
// error; any other delete failure is fatal.
func (w *BigQueryWarehouse) Recreate(ctx context.Context) error {
	if err := w.ensureDataset(ctx); err != nil {
		return &TableAdminError{Op: "dataset", Table: w.ref(), Err: err}
	}

	table := w.client.Dataset(w.dataset).Table(w.table)

	if err := table.Delete(ctx); err != nil {
		if !isNotFound(err) {
			return &TableAdminError{Op: "delete", Table: w.ref(), Err: err}
		}
		w.logger.Printf("Table %s not present, nothing to delete", w.ref())
	} else {
		w.logger.Printf("Deleted table %s", w.ref())
	}

	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: timeEntrySchema}); err != nil {
		return &TableAdminError{Op: "create", Table: w.ref(), Err: err}
	}
	w.logger.Printf("Created table %s with %d columns", w.ref(), len(timeEntrySchema))
	return nil
}

// ensureDataset creates the dataset in the configured location when it does
// not exist yet. The table inherits the dataset's location.
func (w *BigQueryWarehouse) ensureDataset(ctx context.Context) error {
	ds := w.client.Dataset(w.dataset)
	if _, err := ds.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return err
	}

	w.logger.Printf("Creating dataset %s in %s", w.dataset, w.location)
	return ds.Create(ctx, &bigquery.DatasetMetadata{Location: w.location})
}

// Insert bulk-loads all rows in one streaming insert. Invalid rows are
// skipped by the service and reported back per row; the accepted rows stay
// loaded and the rejections surface as a PartialInsertError.
func (w *BigQueryWarehouse) Insert(ctx context.Context, rows []models.TimeEntryRecord) error {
	if len(rows) == 0 {
		w.logger.Printf("No rows to insert into %s", w.ref())
		return nil
	}

	savers := make([]*rowSaver, len(rows))
	for i := range rows {
		savers[i] = &rowSaver{row: rows[i]}
	}

	inserter := w.client.Dataset(w.dataset).Table(w.table).Inserter()
	inserter.SkipInvalidRows = true

	if err := inserter.Put(ctx, savers); err != nil {
		return convertPutError(w.ref(), len(rows), err)
	}

	w.logger.Printf("Inserted %d rows into %s", len(rows), w.ref())
	return nil
}

// HealthCheck verifies the project is reachable. A missing dataset is fine;
// Recreate builds it on the next run.
func (w *BigQueryWarehouse) HealthCheck(ctx context.Context) error {
	if _, err := w.client.Dataset(w.dataset).Metadata(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("bigquery dataset %s unreachable: %w", w.dataset, err)
	}
	return nil
}

// Close releases the underlying BigQuery connection.
func (w *BigQueryWarehouse) Close() error {
	return w.client.Close()
}

// rowSaver adapts a TimeEntryRecord to the streaming insert API. Empty
// timestamp strings and nil id pointers become NULL.
type rowSaver struct {
	row models.TimeEntryRecord
}

func (s *rowSaver) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"ticket_id":     s.row.TicketID,
		"id":            s.row.ID,
		"created_at":    timestampValue(s.row.CreatedAt),
		"updated_at":    timestampValue(s.row.UpdatedAt),
		"start_time":    timestampValue(s.row.StartTime),
		"timer_running": s.row.TimerRunning,
		"billable":      s.row.Billable,
		"time_spent":    s.row.TimeSpent,
		"executed_at":   timestampValue(s.row.ExecutedAt),
		"task_id":       optionalInt(s.row.TaskID),
		"workspace_id":  s.row.WorkspaceID,
		"note":          s.row.Note,
		"agent_id":      optionalInt(s.row.AgentID),
		"custom_fields": s.row.CustomFields,
	}, "", nil
}

func timestampValue(s string) bigquery.Value {
	if s == "" {
		return nil
	}
	return s
}

func optionalInt(p *int64) bigquery.Value {
	if p == nil {
		return nil
	}
	return *p
}

// convertPutError maps a streaming insert failure to the package's error
// taxonomy: per-row rejections become a PartialInsertError, anything else
// an InsertError.
func convertPutError(table string, total int, err error) error {
	var multi bigquery.PutMultiError
	if errors.As(err, &multi) {
		rejected := make([]RowError, 0, len(multi))
		for _, rowErr := range multi {
			reasons := make([]string, 0, len(rowErr.Errors))
			for _, reason := range rowErr.Errors {
				reasons = append(reasons, reason.Error())
			}
			rejected = append(rejected, RowError{Index: rowErr.RowIndex, Reasons: reasons})
		}
		return &PartialInsertError{Table: table, Total: total, Rejected: rejected}
	}
	return &InsertError{Table: table, Err: err}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}
