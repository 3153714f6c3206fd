package models

import (
	"encoding/json"
	"fmt"
)

// TimeEntryRecord is one row of the warehouse table `time_entries`:
// ticket_id, id, created_at, updated_at, start_time, timer_running,
// billable, time_spent, executed_at, task_id, workspace_id, note,
// agent_id, custom_fields.
//
// Temporal columns carry the helpdesk API timestamps verbatim; they are not
// parsed or rewritten on the way through. time_spent stays text because the
// API reports it as "HH:MM". custom_fields is the raw object serialized to a
// JSON text blob.
type TimeEntryRecord struct {
	TicketID     int64  `json:"ticket_id" db:"ticket_id"`
	ID           int64  `json:"id" db:"id"`
	CreatedAt    string `json:"created_at" db:"created_at"`
	UpdatedAt    string `json:"updated_at" db:"updated_at"`
	StartTime    string `json:"start_time" db:"start_time"`
	TimerRunning bool   `json:"timer_running" db:"timer_running"`
	Billable     bool   `json:"billable" db:"billable"`
	TimeSpent    string `json:"time_spent" db:"time_spent"`
	ExecutedAt   string `json:"executed_at" db:"executed_at"`
	TaskID       *int64 `json:"task_id,omitempty" db:"task_id"`
	WorkspaceID  int64  `json:"workspace_id" db:"workspace_id"`
	Note         string `json:"note" db:"note"`
	AgentID      *int64 `json:"agent_id,omitempty" db:"agent_id"`
	CustomFields string `json:"custom_fields" db:"custom_fields"`
}

// TimeEntryColumns lists the warehouse columns in schema order.
var TimeEntryColumns = []string{
	"ticket_id",
	"id",
	"created_at",
	"updated_at",
	"start_time",
	"timer_running",
	"billable",
	"time_spent",
	"executed_at",
	"task_id",
	"workspace_id",
	"note",
	"agent_id",
	"custom_fields",
}

// FlexString unmarshals a JSON value that may arrive as a string or a number
// into its text form. Used for time_spent, which is normally "HH:MM".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	return fmt.Errorf("time value is neither string nor number: %s", data)
}

func (f FlexString) String() string {
	return string(f)
}

// SerializeCustomFields renders an API custom_fields object as the text blob
// stored in the warehouse. A missing or empty object becomes "{}" so the
// column is always valid JSON.
func SerializeCustomFields(fields map[string]any) string {
	if len(fields) == 0 {
		return "{}"
	}
	data, err := json.Marshal(fields)
	if err != nil {
		// map[string]any from a decoded JSON document always re-marshals
		return "{}"
	}
	return string(data)
}
