// Package events provides the in-process bus that carries project store
// mutations to interested consumers (SSE clients, the activity log).
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of store mutation.
type Type string

const (
	TypeProjectCreated    Type = "project.created"
	TypeTaskAdded         Type = "task.added"
	TypeTaskStatusChanged Type = "task.status_changed"
)

// Event describes one applied store mutation.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	ProjectID string    `json:"project_id"`
	TaskID    string    `json:"task_id,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"` // empty for root tasks
	Title     string    `json:"title,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New returns an event of the given type with a fresh ID and timestamp.
func New(typ Type, projectID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
	}
}

// Handler processes a published event.
type Handler func(ctx context.Context, ev *Event) error

// AllProjects subscribes a handler to events from every project.
const AllProjects = ""

// Bus delivers store events to subscribers.
type Bus interface {
	// Publish delivers ev to every handler subscribed to its project and to
	// every AllProjects handler.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for events of the given project, or of
	// all projects when projectID is AllProjects. Returns an unsubscribe
	// function.
	Subscribe(projectID string, handler Handler) (unsubscribe func())

	// History returns recent events for a project (or all projects) in
	// chronological order.
	History(projectID string, limit int) ([]*Event, error)
}
