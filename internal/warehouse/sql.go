package warehouse

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
	"github.com/KnightedIT/freshservice-dashboard/internal/models"
)

// createTableDDL keeps temporal columns as TEXT: the rows carry the API
// timestamps verbatim and relational targets are used for local inspection,
// not production analytics.
const createTableDDL = `CREATE TABLE %s (
	ticket_id BIGINT,
	id BIGINT,
	created_at TEXT,
	updated_at TEXT,
	start_time TEXT,
	timer_running BOOLEAN,
	billable BOOLEAN,
	time_spent TEXT,
	executed_at TEXT,
	task_id BIGINT,
	workspace_id BIGINT,
	note TEXT,
	agent_id BIGINT,
	custom_fields TEXT
)`

// Inserts are chunked to stay under driver placeholder limits.
const insertChunkSize = 500

// SQLWarehouse loads rows into a relational table via database/sql. It
// supports the postgres and sqlite drivers. Unlike BigQuery there is no
// partial-accept mode: a failed bulk insert rejects the whole chunk.
type SQLWarehouse struct {
	db     *sqlx.DB
	table  string
	logger *log.Logger
}

// NewSQL opens the configured database. The connection is verified lazily;
// use HealthCheck to probe it.
func NewSQL(cfg *config.SQLConfig) (*SQLWarehouse, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	table := cfg.Table
	if table == "" {
		table = "time_entries"
	}

	return &SQLWarehouse{
		db:     db,
		table:  table,
		logger: log.New(log.Writer(), "[WAREHOUSE] ", log.LstdFlags),
	}, nil
}

// SetLogger replaces the warehouse's logger.
func (w *SQLWarehouse) SetLogger(logger *log.Logger) {
	w.logger = logger
}

// Name returns the backend identifier.
func (w *SQLWarehouse) Name() string {
	return "sql"
}

// Recreate drops the destination table if present and creates it fresh.
func (w *SQLWarehouse) Recreate(ctx context.Context) error {
	if _, err := w.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", w.table)); err != nil {
		return &TableAdminError{Op: "delete", Table: w.table, Err: err}
	}
	if _, err := w.db.ExecContext(ctx, fmt.Sprintf(createTableDDL, w.table)); err != nil {
		return &TableAdminError{Op: "create", Table: w.table, Err: err}
	}
	w.logger.Printf("Recreated table %s with %d columns", w.table, len(models.TimeEntryColumns))
	return nil
}

// Insert bulk-loads all rows using named batch inserts.
func (w *SQLWarehouse) Insert(ctx context.Context, rows []models.TimeEntryRecord) error {
	if len(rows) == 0 {
		w.logger.Printf("No rows to insert into %s", w.table)
		return nil
	}

	query := insertQuery(w.table)
	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := w.db.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return &InsertError{Table: w.table, Err: err}
		}
	}

	w.logger.Printf("Inserted %d rows into %s", len(rows), w.table)
	return nil
}

// HealthCheck verifies the database is reachable.
func (w *SQLWarehouse) HealthCheck(ctx context.Context) error {
	if err := w.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}

func insertQuery(table string) string {
	cols := strings.Join(models.TimeEntryColumns, ", ")
	params := ":" + strings.Join(models.TimeEntryColumns, ", :")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, cols, params)
}
