package freshservice

import (
	"context"
	"fmt"
	"strconv"

	"github.com/KnightedIT/freshservice-dashboard/internal/metrics"
)

// FilteredTicketIDs pages through the ticket filter endpoint and returns the
// IDs of tagged tickets belonging to the target workspace, in page order.
//
// Pagination advances while a page comes back with exactly pageSize raw
// tickets, so a total that is a multiple of the page size costs one extra
// empty request. A failed page stops pagination; IDs gathered so far are
// returned alongside the error.
func (c *Client) FilteredTicketIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := fmt.Sprintf("%q", fmt.Sprintf("tag:'%s'", c.filterTag))

	for page := 1; ; page++ {
		var result ticketFilterResponse
		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"query":    query,
				"page":     strconv.Itoa(page),
				"per_page": strconv.Itoa(c.pageSize),
			}).
			SetResult(&result).
			Get("/tickets/filter")

		if err != nil {
			return ids, &DiscoveryRequestError{Page: page, Err: err}
		}
		if resp.IsError() {
			return ids, &DiscoveryRequestError{
				Page:       page,
				StatusCode: resp.StatusCode(),
				Err:        fmt.Errorf("unexpected status %s", resp.Status()),
			}
		}
		metrics.PagesFetched.Inc()

		kept := 0
		for _, t := range result.Tickets {
			if t.WorkspaceID != c.workspaceID {
				continue
			}
			ids = append(ids, t.ID)
			kept++
		}
		c.logger.Printf("Page %d: %d tickets, kept %d in workspace %d (%d total)",
			page, len(result.Tickets), kept, c.workspaceID, len(ids))

		// Raw page fullness is the continuation signal, not the kept count
		if len(result.Tickets) < c.pageSize {
			break
		}
	}

	return ids, nil
}
