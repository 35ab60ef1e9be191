// Package queue carries activity events over RabbitMQ when the audit
// consumer runs out of process, or needs to survive restarts of the API.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/taskflow/internal/events"
	"github.com/iliyamo/taskflow/internal/model"
)

// ActivityMessage is the wire form of an events.Event.  Field names are
// snake_case so non-Go consumers can read the queue directly.
type ActivityMessage struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	Details    string `json:"details"`
	OccurredAt string `json:"occurred_at"`
}

func encode(e events.Event) ([]byte, error) {
	return json.Marshal(ActivityMessage{
		ID:         e.ID,
		ProjectID:  e.ProjectID,
		UserID:     e.UserID,
		Action:     string(e.Action),
		Details:    e.Details,
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
}

func decode(body []byte) (events.Event, error) {
	var m ActivityMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal: %w", err)
	}
	if m.ID == "" || m.ProjectID == "" || m.Action == "" {
		return events.Event{}, fmt.Errorf("incomplete message %q", m.ID)
	}
	at, err := time.Parse(time.RFC3339Nano, m.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("occurred_at: %w", err)
	}
	return events.Event{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		UserID:     m.UserID,
		Action:     model.ActivityAction(m.Action),
		Details:    m.Details,
		OccurredAt: at,
	}, nil
}
