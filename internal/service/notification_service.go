package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/events"
)

// EventSink receives every task event after it has been logged.
type EventSink interface {
	Publish(ctx context.Context, event events.Event) error
}

// NotificationService handles emitting notifications for task events.
type NotificationService struct {
	dispatcher events.Dispatcher
	sink       EventSink
	logger     *zap.Logger
}

// NewNotificationService creates the service. sink may be nil.
func NewNotificationService(dispatcher events.Dispatcher, sink EventSink, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTaskCreated, n.handleTaskCreated)
	n.dispatcher.Subscribe(events.EventTaskUpdated, n.forward)
	n.dispatcher.Subscribe(events.EventTaskStatusChanged, n.handleTaskStatusChanged)
	n.dispatcher.Subscribe(events.EventTaskDeleted, n.handleTaskDeleted)
}

func (n *NotificationService) handleTaskCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskCreated", zap.Int64("task_id", event.TaskID), zap.String("actor", event.Actor.Username), zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) handleTaskStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskStatusChanged", zap.Int64("task_id", event.TaskID), zap.String("actor", event.Actor.Username), zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) handleTaskDeleted(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskDeleted", zap.Int64("task_id", event.TaskID), zap.String("actor", event.Actor.Username))
	return n.forward(ctx, event)
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	if n.sink == nil {
		return nil
	}
	return n.sink.Publish(ctx, event)
}
