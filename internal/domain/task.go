package domain

import "time"

// TaskStatus enumerates board columns.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task is owned by the user who created it. Owner fields are copies taken at creation.
type Task struct {
	ID            int64
	Title         string
	Description   string
	Status        TaskStatus
	OwnerID       int64
	OwnerUsername string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// OwnedBy reports whether username created the task.
func (t *Task) OwnedBy(username string) bool {
	return t.OwnerUsername == username
}

// StatusChange is an immutable audit entry appended on every status transition.
type StatusChange struct {
	ID                int64
	TaskID            int64
	PreviousStatus    TaskStatus
	NewStatus         TaskStatus
	ChangedAt         time.Time
	ChangedByUserID   *int64
	ChangedByUsername string
}
