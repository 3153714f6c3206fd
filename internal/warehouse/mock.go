package warehouse

import (
	"context"
	"errors"
	"sync"

	"github.com/KnightedIT/freshservice-dashboard/internal/models"
)

// MockWarehouse is an in-memory implementation of the Warehouse interface
// for testing. It tracks call counts and retains inserted rows so tests can
// assert exactly what a run loaded.
type MockWarehouse struct {
	mu   sync.RWMutex
	rows []models.TimeEntryRecord

	tableExists   bool
	RecreateCalls int
	DeleteCalls   int
	CreateCalls   int
	InsertCalls   int

	RecreateErr error
	InsertErr   error
	HealthErr   error
}

// NewMockWarehouse creates a mock warehouse with no table yet.
func NewMockWarehouse() *MockWarehouse {
	return &MockWarehouse{}
}

// SeedTable marks the table as already existing, as after a previous run.
func (m *MockWarehouse) SeedTable(rows []models.TimeEntryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tableExists = true
	m.rows = append([]models.TimeEntryRecord(nil), rows...)
}

// Recreate mimics delete-if-exists followed by create.
func (m *MockWarehouse) Recreate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecreateCalls++
	if m.RecreateErr != nil {
		return m.RecreateErr
	}

	if m.tableExists {
		m.DeleteCalls++
	}
	m.CreateCalls++
	m.tableExists = true
	m.rows = nil
	return nil
}

// Insert records the rows. When InsertErr is a PartialInsertError the
// accepted rows are retained, matching the service's partial-accept mode;
// any other configured error loads nothing.
func (m *MockWarehouse) Insert(ctx context.Context, rows []models.TimeEntryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCalls++
	if m.InsertErr != nil {
		var pe *PartialInsertError
		if errors.As(m.InsertErr, &pe) {
			rejected := make(map[int]bool, len(pe.Rejected))
			for _, re := range pe.Rejected {
				rejected[re.Index] = true
			}
			for i, row := range rows {
				if !rejected[i] {
					m.rows = append(m.rows, row)
				}
			}
		}
		return m.InsertErr
	}

	m.rows = append(m.rows, rows...)
	return nil
}

// HealthCheck returns the configured health error.
func (m *MockWarehouse) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}

// Name returns the backend identifier.
func (m *MockWarehouse) Name() string {
	return "mock"
}

// Close is a no-op.
func (m *MockWarehouse) Close() error {
	return nil
}

// Rows returns a copy of everything currently loaded.
func (m *MockWarehouse) Rows() []models.TimeEntryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.TimeEntryRecord(nil), m.rows...)
}

// TableExists reports whether Recreate has built the table.
func (m *MockWarehouse) TableExists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tableExists
}
