package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/events"
	"github.com/spec-kit/task-management/internal/repository"
)

// ErrForbidden is returned when the caller does not own the task.
var ErrForbidden = errors.New("task belongs to another user")

// OwnerResolver maps a username to the id held by user-service.
type OwnerResolver interface {
	ResolveUserID(ctx context.Context, username string) (int64, error)
}

// TaskService coordinates task workflows.
type TaskService struct {
	tasks      repository.TaskRepository
	history    repository.StatusChangeRepository
	owners     OwnerResolver
	dispatcher     events.Dispatcher
	publishTimeout time.Duration
	clock          clock.Clock
	logger         *zap.Logger
}

// TaskDependencies bundles requirements for the task service.
type TaskDependencies struct {
	TaskRepo    repository.TaskRepository
	HistoryRepo repository.StatusChangeRepository
	Owners      OwnerResolver
	Dispatcher  events.Dispatcher

	// PublishTimeout bounds event delivery per write, independent of the request.
	PublishTimeout time.Duration
	Clock          clock.Clock
	Logger         *zap.Logger
}

// TaskInput carries writable task fields. Empty status on create means TODO.
type TaskInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
}

// NewTaskService constructs the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	publishTimeout := deps.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = 500 * time.Millisecond
	}
	return &TaskService{
		tasks:          deps.TaskRepo,
		history:        deps.HistoryRepo,
		owners:         deps.Owners,
		dispatcher:     deps.Dispatcher,
		publishTimeout: publishTimeout,
		clock:          clk,
		logger:         deps.Logger,
	}
}

// Create stamps the owner reference resolved from user-service onto a new task.
func (s *TaskService) Create(ctx context.Context, username string, input TaskInput) (*domain.Task, error) {
	ownerID, err := s.owners.ResolveUserID(ctx, username)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Status:        input.Status,
		OwnerID:       ownerID,
		OwnerUsername: username,
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusTodo
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:   events.EventTaskCreated,
		TaskID: task.ID,
		Actor:  events.Actor{Username: username},
		Payload: events.TaskCreatedPayload{
			Title:         task.Title,
			Status:        task.Status,
			OwnerID:       task.OwnerID,
			OwnerUsername: task.OwnerUsername,
		},
	})
	return task, nil
}

// List returns tasks matching filter.
func (s *TaskService) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	return s.tasks.List(ctx, filter)
}

// ListMine returns the caller's tasks, optionally narrowed by status.
func (s *TaskService) ListMine(ctx context.Context, username string, status *domain.TaskStatus) ([]domain.Task, error) {
	return s.tasks.List(ctx, repository.TaskFilter{Status: status, OwnerUsername: &username})
}

// Get loads a single task.
func (s *TaskService) Get(ctx context.Context, id int64) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// Update rewrites a task owned by username, recording a status change when the status moves.
func (s *TaskService) Update(ctx context.Context, username string, id int64, input TaskInput) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(username) {
		return nil, ErrForbidden
	}

	previous := task.Status
	task.Title = strings.TrimSpace(input.Title)
	task.Description = strings.TrimSpace(input.Description)
	if input.Status != "" {
		task.Status = input.Status
	}

	var change *domain.StatusChange
	if task.Status != previous {
		change = &domain.StatusChange{
			PreviousStatus:    previous,
			NewStatus:         task.Status,
			ChangedByUserID:   &task.OwnerID,
			ChangedByUsername: username,
		}
	}
	if err := s.tasks.Update(ctx, task, change); err != nil {
		return nil, err
	}

	published := []events.Event{{Type: events.EventTaskUpdated, TaskID: task.ID, Actor: events.Actor{Username: username}}}
	if change != nil {
		published = append(published, events.Event{
			Type:    events.EventTaskStatusChanged,
			TaskID:  task.ID,
			Actor:   events.Actor{Username: username},
			Payload: events.TaskStatusChangedPayload{OldStatus: previous, NewStatus: task.Status},
		})
	}
	s.publish(ctx, published...)
	return task, nil
}

// Delete removes a task owned by username.
func (s *TaskService) Delete(ctx context.Context, username string, id int64) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !task.OwnedBy(username) {
		return ErrForbidden
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: events.EventTaskDeleted, TaskID: id, Actor: events.Actor{Username: username}})
	return nil
}

// History returns the status audit log of a task, oldest first.
func (s *TaskService) History(ctx context.Context, id int64) ([]domain.StatusChange, error) {
	if _, err := s.tasks.GetByID(ctx, id); err != nil {
		return nil, err
	}
	changes, err := s.history.ListByTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes == nil {
		changes = []domain.StatusChange{}
	}
	return changes, nil
}

// publish delivers events after the write has committed. Delivery shares one
// deadline that outlives request cancellation but never the publish timeout.
func (s *TaskService) publish(ctx context.Context, batch ...events.Event) {
	if s.dispatcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	for _, event := range batch {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = s.clock.Now()
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil && s.logger != nil {
			s.logger.Warn("event delivery failed", zap.String("event_type", string(event.Type)), zap.Int64("task_id", event.TaskID), zap.Error(err))
		}
	}
}
