package dto

import (
	"time"

	"github.com/spec-kit/task-management/internal/domain"
)

// TaskRequest is the body of task create and update.
type TaskRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
}

// TaskResponse is the public task view.
type TaskResponse struct {
	ID            int64             `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Status        domain.TaskStatus `json:"status"`
	OwnerID       int64             `json:"owner_id"`
	OwnerUsername string            `json:"owner"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

// StatusChangeResponse is one audit entry.
type StatusChangeResponse struct {
	ID                int64             `json:"id"`
	PreviousStatus    domain.TaskStatus `json:"previous_status"`
	NewStatus         domain.TaskStatus `json:"new_status"`
	ChangedAt         time.Time         `json:"change_date"`
	ChangedByUserID   *int64            `json:"changed_by_user_id,omitempty"`
	ChangedByUsername string            `json:"changed_by"`
}

// ToTaskResponse maps a task.
func ToTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:            task.ID,
		Title:         task.Title,
		Description:   task.Description,
		Status:        task.Status,
		OwnerID:       task.OwnerID,
		OwnerUsername: task.OwnerUsername,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}
}

// ToTaskResponses maps a listing; never nil.
func ToTaskResponses(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, ToTaskResponse(&tasks[i]))
	}
	return out
}

// ToStatusChangeResponses maps the audit log; never nil.
func ToStatusChangeResponses(changes []domain.StatusChange) []StatusChangeResponse {
	out := make([]StatusChangeResponse, 0, len(changes))
	for _, ch := range changes {
		out = append(out, StatusChangeResponse{
			ID:                ch.ID,
			PreviousStatus:    ch.PreviousStatus,
			NewStatus:         ch.NewStatus,
			ChangedAt:         ch.ChangedAt,
			ChangedByUserID:   ch.ChangedByUserID,
			ChangedByUsername: ch.ChangedByUsername,
		})
	}
	return out
}
