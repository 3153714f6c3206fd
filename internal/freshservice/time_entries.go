package freshservice

import (
	"context"
	"fmt"

	"github.com/KnightedIT/freshservice-dashboard/internal/models"
)

// TimeEntries fetches every time entry logged on one ticket, flattened into
// warehouse rows tagged with the ticket id.
func (c *Client) TimeEntries(ctx context.Context, ticketID int64) ([]models.TimeEntryRecord, error) {
	var result timeEntriesResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/tickets/%d/time_entries", ticketID))

	if err != nil {
		return nil, &CollectionRequestError{TicketID: ticketID, Err: err}
	}
	if resp.IsError() {
		return nil, &CollectionRequestError{
			TicketID:   ticketID,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	records := make([]models.TimeEntryRecord, 0, len(result.TimeEntries))
	for _, entry := range result.TimeEntries {
		records = append(records, entry.Record(ticketID))
	}
	return records, nil
}
