package freshservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
)

func testClient(t *testing.T, serverURL string, pageSize int) *Client {
	t.Helper()
	cfg := &config.FreshserviceConfig{
		Domain:      serverURL,
		FilterTag:   "dashboard",
		WorkspaceID: 2,
		PageSize:    pageSize,
	}
	c := NewClient(cfg, "test-api-key")
	c.SetLogger(log.New(io.Discard, "", 0))
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClientAuth(t *testing.T) {
	t.Run("sends basic auth and workspace cookie", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "test-api-key", user)
			assert.Equal(t, "X", pass)

			cookie, err := r.Cookie("current_workspace_id")
			require.NoError(t, err)
			assert.Equal(t, "2", cookie.Value)

			assert.Equal(t, "application/json", r.Header.Get("Accept"))

			writeJSON(t, w, map[string]any{"tickets": []any{}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		_, err := client.FilteredTicketIDs(context.Background())
		require.NoError(t, err)
	})
}

func TestFilteredTicketIDs(t *testing.T) {
	t.Run("keeps only target workspace tickets in page order", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v2/tickets/filter", r.URL.Path)
			assert.Equal(t, `"tag:'dashboard'"`, r.URL.Query().Get("query"))
			assert.Equal(t, "100", r.URL.Query().Get("per_page"))

			writeJSON(t, w, map[string]any{"tickets": []map[string]any{
				{"id": 11, "workspace_id": 2},
				{"id": 12, "workspace_id": 1},
				{"id": 13, "workspace_id": 2},
				{"id": 14, "workspace_id": 3},
			}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		ids, err := client.FilteredTicketIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int64{11, 13}, ids)
	})

	t.Run("paginates while raw pages are full", func(t *testing.T) {
		// Page size 3: two full pages then a short one
		pages := [][]map[string]any{
			{
				{"id": 1, "workspace_id": 2},
				{"id": 2, "workspace_id": 2},
				{"id": 3, "workspace_id": 1},
			},
			{
				{"id": 4, "workspace_id": 2},
				{"id": 5, "workspace_id": 1},
				{"id": 6, "workspace_id": 2},
			},
			{
				{"id": 7, "workspace_id": 2},
			},
		}

		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			assert.Equal(t, fmt.Sprintf("%d", requests), r.URL.Query().Get("page"))
			assert.Equal(t, "3", r.URL.Query().Get("per_page"))
			writeJSON(t, w, map[string]any{"tickets": pages[requests-1]})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 3)
		ids, err := client.FilteredTicketIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, requests)
		assert.Equal(t, []int64{1, 2, 4, 6, 7}, ids)
	})

	t.Run("exactly full last page costs one extra empty request", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests == 1 {
				writeJSON(t, w, map[string]any{"tickets": []map[string]any{
					{"id": 1, "workspace_id": 2},
					{"id": 2, "workspace_id": 2},
				}})
				return
			}
			writeJSON(t, w, map[string]any{"tickets": []any{}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 2)
		ids, err := client.FilteredTicketIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, requests)
		assert.Equal(t, []int64{1, 2}, ids)
	})

	t.Run("continuation uses raw count, not kept count", func(t *testing.T) {
		// A full page of foreign-workspace tickets must still advance
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests == 1 {
				writeJSON(t, w, map[string]any{"tickets": []map[string]any{
					{"id": 1, "workspace_id": 9},
					{"id": 2, "workspace_id": 9},
				}})
				return
			}
			writeJSON(t, w, map[string]any{"tickets": []map[string]any{
				{"id": 3, "workspace_id": 2},
			}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 2)
		ids, err := client.FilteredTicketIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, requests)
		assert.Equal(t, []int64{3}, ids)
	})

	t.Run("failed page returns partial result with typed error", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests == 1 {
				writeJSON(t, w, map[string]any{"tickets": []map[string]any{
					{"id": 1, "workspace_id": 2},
					{"id": 2, "workspace_id": 2},
				}})
				return
			}
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := testClient(t, server.URL, 2)
		ids, err := client.FilteredTicketIDs(context.Background())
		require.Error(t, err)
		assert.True(t, IsDiscoveryRequestError(err))

		var de *DiscoveryRequestError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 2, de.Page)
		assert.Equal(t, http.StatusTooManyRequests, de.StatusCode)

		// Page 1 survived
		assert.Equal(t, []int64{1, 2}, ids)
	})

	t.Run("unreachable server is a discovery error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := testClient(t, server.URL, 100)
		ids, err := client.FilteredTicketIDs(context.Background())
		require.Error(t, err)
		assert.True(t, IsDiscoveryRequestError(err))
		assert.Empty(t, ids)
	})
}

func TestTimeEntries(t *testing.T) {
	t.Run("maps API entries to warehouse rows", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v2/tickets/42/time_entries", r.URL.Path)
			writeJSON(t, w, map[string]any{"time_entries": []map[string]any{
				{
					"id":            9001,
					"created_at":    "2026-03-01T08:00:00Z",
					"updated_at":    "2026-03-01T09:30:00Z",
					"start_time":    "2026-03-01T08:00:00Z",
					"timer_running": false,
					"billable":      true,
					"time_spent":    "01:30",
					"executed_at":   "2026-03-01T08:00:00Z",
					"task_id":       nil,
					"workspace_id":  2,
					"note":          "patched the VPN concentrator",
					"agent_id":      77,
					"custom_fields": map[string]any{"cost_center": "NOC"},
				},
			}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		records, err := client.TimeEntries(context.Background(), 42)
		require.NoError(t, err)
		require.Len(t, records, 1)

		rec := records[0]
		assert.Equal(t, int64(42), rec.TicketID)
		assert.Equal(t, int64(9001), rec.ID)
		assert.Nil(t, rec.TaskID)
		require.NotNil(t, rec.AgentID)
		assert.Equal(t, int64(77), *rec.AgentID)
		assert.Equal(t, "01:30", rec.TimeSpent)
		assert.Equal(t, "2026-03-01T08:00:00Z", rec.CreatedAt)
		assert.True(t, rec.Billable)
		assert.False(t, rec.TimerRunning)
		assert.Equal(t, "patched the VPN concentrator", rec.Note)
		assert.JSONEq(t, `{"cost_center":"NOC"}`, rec.CustomFields)
	})

	t.Run("numeric time_spent is coerced to text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"time_entries": []map[string]any{
				{"id": 1, "time_spent": 90, "workspace_id": 2},
			}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		records, err := client.TimeEntries(context.Background(), 7)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "90", records[0].TimeSpent)
	})

	t.Run("missing custom_fields becomes empty object blob", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"time_entries": []map[string]any{
				{"id": 1, "workspace_id": 2},
			}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		records, err := client.TimeEntries(context.Background(), 7)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "{}", records[0].CustomFields)
	})

	t.Run("server error is a collection error carrying the ticket id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		_, err := client.TimeEntries(context.Background(), 55)
		require.Error(t, err)
		assert.True(t, IsCollectionRequestError(err))

		var ce *CollectionRequestError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, int64(55), ce.TicketID)
		assert.Equal(t, http.StatusInternalServerError, ce.StatusCode)
	})

	t.Run("empty list yields zero rows", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"time_entries": []any{}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		records, err := client.TimeEntries(context.Background(), 7)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestPing(t *testing.T) {
	t.Run("healthy endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v2/tickets", r.URL.Path)
			assert.Equal(t, "1", r.URL.Query().Get("per_page"))
			writeJSON(t, w, map[string]any{"tickets": []any{}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("auth rejection surfaces the status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := testClient(t, server.URL, 100)
		err := client.Ping(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}
