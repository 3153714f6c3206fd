package freshservice

import (
	"github.com/KnightedIT/freshservice-dashboard/internal/models"
)

// Ticket is the subset of the API ticket object discovery cares about.
type Ticket struct {
	ID          int64 `json:"id"`
	WorkspaceID int64 `json:"workspace_id"`
}

type ticketFilterResponse struct {
	Tickets []Ticket `json:"tickets"`
}

// TimeEntry is the raw API time-entry object. The API does not embed the
// owning ticket id; callers supply it when flattening to a warehouse row.
type TimeEntry struct {
	ID           int64             `json:"id"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
	StartTime    string            `json:"start_time"`
	TimerRunning bool              `json:"timer_running"`
	Billable     bool              `json:"billable"`
	TimeSpent    models.FlexString `json:"time_spent"`
	ExecutedAt   string            `json:"executed_at"`
	TaskID       *int64            `json:"task_id"`
	WorkspaceID  int64             `json:"workspace_id"`
	Note         string            `json:"note"`
	AgentID      *int64            `json:"agent_id"`
	CustomFields map[string]any    `json:"custom_fields"`
}

type timeEntriesResponse struct {
	TimeEntries []TimeEntry `json:"time_entries"`
}

// Record flattens the entry into a warehouse row owned by ticketID.
func (e TimeEntry) Record(ticketID int64) models.TimeEntryRecord {
	return models.TimeEntryRecord{
		TicketID:     ticketID,
		ID:           e.ID,
		TaskID:       e.TaskID,
		WorkspaceID:  e.WorkspaceID,
		AgentID:      e.AgentID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		StartTime:    e.StartTime,
		ExecutedAt:   e.ExecutedAt,
		TimerRunning: e.TimerRunning,
		Billable:     e.Billable,
		TimeSpent:    e.TimeSpent.String(),
		Note:         e.Note,
		CustomFields: models.SerializeCustomFields(e.CustomFields),
	}
}
