package events

import (
	"time"

	"github.com/spec-kit/task-management/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskCreated       EventType = "task_created"
	EventTaskUpdated       EventType = "task_updated"
	EventTaskStatusChanged EventType = "task_status_changed"
	EventTaskDeleted       EventType = "task_deleted"
)

// Actor is the principal that caused the event.
type Actor struct {
	Username string `json:"username"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TaskID    int64       `json:"task_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	Title         string            `json:"title"`
	Status        domain.TaskStatus `json:"status"`
	OwnerID       int64             `json:"owner_id"`
	OwnerUsername string            `json:"owner_username"`
}

// TaskStatusChangedPayload payload.
type TaskStatusChangedPayload struct {
	OldStatus domain.TaskStatus `json:"old_status"`
	NewStatus domain.TaskStatus `json:"new_status"`
}
