package freshservice

import (
	"errors"
	"fmt"
)

// DiscoveryRequestError reports a failed page fetch during ticket discovery.
// Pagination stops at the failing page; IDs gathered from earlier pages are
// still returned and usable.
type DiscoveryRequestError struct {
	Page       int
	StatusCode int
	Err        error
}

func (e *DiscoveryRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ticket filter page %d failed with status %d: %v", e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ticket filter page %d failed: %v", e.Page, e.Err)
}

func (e *DiscoveryRequestError) Unwrap() error {
	return e.Err
}

// CollectionRequestError reports a failed time-entries fetch for one ticket.
// The ticket contributes no rows; the rest of the batch is unaffected.
type CollectionRequestError struct {
	TicketID   int64
	StatusCode int
	Err        error
}

func (e *CollectionRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("time entries for ticket %d failed with status %d: %v", e.TicketID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("time entries for ticket %d failed: %v", e.TicketID, e.Err)
}

func (e *CollectionRequestError) Unwrap() error {
	return e.Err
}

// IsDiscoveryRequestError checks if the error is a DiscoveryRequestError.
func IsDiscoveryRequestError(err error) bool {
	var de *DiscoveryRequestError
	return errors.As(err, &de)
}

// IsCollectionRequestError checks if the error is a CollectionRequestError.
func IsCollectionRequestError(err error) bool {
	var ce *CollectionRequestError
	return errors.As(err, &ce)
}
