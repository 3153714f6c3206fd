package warehouse

import (
	"errors"
	"fmt"
)

// TableAdminError reports a failed table delete or create. Deleting a table
// that does not exist is not an admin error; anything else aborts the run
// before rows are loaded.
type TableAdminError struct {
	Op    string
	Table string
	Err   error
}

func (e *TableAdminError) Error() string {
	return fmt.Sprintf("table %s failed for %s: %v", e.Op, e.Table, e.Err)
}

func (e *TableAdminError) Unwrap() error {
	return e.Err
}

// RowError carries the rejection reasons for one submitted row.
type RowError struct {
	Index   int
	Reasons []string
}

// PartialInsertError reports a bulk insert where some rows were rejected and
// the rest were loaded. Rejected rows are dropped from the warehouse; their
// reasons are preserved here for logging.
type PartialInsertError struct {
	Table    string
	Total    int
	Rejected []RowError
}

func (e *PartialInsertError) Error() string {
	return fmt.Sprintf("bulk insert into %s rejected %d of %d rows", e.Table, len(e.Rejected), e.Total)
}

// Accepted returns the count of rows that made it into the table.
func (e *PartialInsertError) Accepted() int {
	return e.Total - len(e.Rejected)
}

// InsertError reports a bulk insert that failed as a whole; no rows were
// loaded.
type InsertError struct {
	Table string
	Err   error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("bulk insert into %s failed: %v", e.Table, e.Err)
}

func (e *InsertError) Unwrap() error {
	return e.Err
}

// IsTableAdminError checks if the error is a TableAdminError.
func IsTableAdminError(err error) bool {
	var te *TableAdminError
	return errors.As(err, &te)
}

// IsPartialInsertError checks if the error is a PartialInsertError.
func IsPartialInsertError(err error) bool {
	var pe *PartialInsertError
	return errors.As(err, &pe)
}

// IsInsertError checks if the error is an InsertError.
func IsInsertError(err error) bool {
	var ie *InsertError
	return errors.As(err, &ie)
}
