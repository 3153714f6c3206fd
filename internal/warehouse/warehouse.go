// Package warehouse loads normalized time-entry rows into the analytical
// destination table. Each run fully replaces the table: delete if present,
// create with the fixed schema, then one bulk insert.
package warehouse

import (
	"context"
	"fmt"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
	"github.com/KnightedIT/freshservice-dashboard/internal/models"
)

// Warehouse defines the interface for warehouse backends
type Warehouse interface {
	// Recreate drops the destination table if present and creates it
	// fresh with the fixed 14-column schema
	Recreate(ctx context.Context) error

	// Insert bulk-loads all rows in one call
	Insert(ctx context.Context, rows []models.TimeEntryRecord) error

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error

	// Name returns the backend identifier
	Name() string

	// Close releases backend resources
	Close() error
}

// New creates the warehouse backend selected by the configuration.
func New(ctx context.Context, cfg *config.WarehouseConfig) (Warehouse, error) {
	switch cfg.Backend {
	case "bigquery":
		return NewBigQuery(ctx, &cfg.BigQuery)
	case "sql":
		return NewSQL(&cfg.SQL)
	default:
		return nil, fmt.Errorf("unknown warehouse backend type: %s", cfg.Backend)
	}
}
