package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository/repotest"
	"github.com/spec-kit/task-management/internal/events"
	"github.com/spec-kit/task-management/internal/repository"
)

type taskFixture struct {
	svc   *TaskService
	repo  *repotest.Tasks
	sink  *recordingSink
	owner staticOwners
}

func newTaskFixture(owners staticOwners) *taskFixture {
	repo := repotest.NewTasks()
	sink := &recordingSink{}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, sink, zap.NewNop()).RegisterHandlers()
	return &taskFixture{
		svc: NewTaskService(TaskDependencies{
			TaskRepo:    repo,
			HistoryRepo: repo,
			Owners:      owners,
			Dispatcher:  dispatcher,
			Logger:      zap.NewNop(),
		}),
		repo:  repo,
		sink:  sink,
		owner: owners,
	}
}

var defaultOwners = staticOwners{ids: map[string]int64{"alice": 1, "bob": 2}}

func TestCreateStampsOwner(t *testing.T) {
	c := qt.New(t)
	f := newTaskFixture(defaultOwners)

	task, err := f.svc.Create(context.Background(), "alice", TaskInput{Title: " Write docs "})
	c.Assert(err, qt.IsNil)
	c.Assert(task.Title, qt.Equals, "Write docs")
	c.Assert(task.Status, qt.Equals, domain.TaskStatusTodo)
	c.Assert(task.OwnerID, qt.Equals, int64(1))
	c.Assert(task.OwnerUsername, qt.Equals, "alice")
	c.Assert(f.sink.types(), qt.DeepEquals, []events.EventType{events.EventTaskCreated})
}

func TestCreatePropagatesResolverError(t *testing.T) {
	c := qt.New(t)
	unavailable := errors.New("user-service down")
	f := newTaskFixture(staticOwners{err: unavailable})

	_, err := f.svc.Create(context.Background(), "alice", TaskInput{Title: "x"})
	c.Assert(err, qt.ErrorIs, unavailable)
	tasks, err := f.svc.List(context.Background(), repository.TaskFilter{})
	c.Assert(err, qt.IsNil)
	c.Assert(tasks, qt.HasLen, 0)
}

func TestUpdateRecordsStatusChange(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newTaskFixture(defaultOwners)
	task, err := f.svc.Create(ctx, "alice", TaskInput{Title: "x"})
	c.Assert(err, qt.IsNil)

	_, err = f.svc.Update(ctx, "alice", task.ID, TaskInput{Title: "x", Description: "more"})
	c.Assert(err, qt.IsNil)
	history, err := f.svc.History(ctx, task.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(history, qt.HasLen, 0)

	updated, err := f.svc.Update(ctx, "alice", task.ID, TaskInput{Title: "x", Status: domain.TaskStatusInProgress})
	c.Assert(err, qt.IsNil)
	c.Assert(updated.Status, qt.Equals, domain.TaskStatusInProgress)
	c.Assert(updated.UpdatedAt, qt.IsNotNil)

	history, err = f.svc.History(ctx, task.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(history, qt.HasLen, 1)
	c.Assert(history[0].PreviousStatus, qt.Equals, domain.TaskStatusTodo)
	c.Assert(history[0].NewStatus, qt.Equals, domain.TaskStatusInProgress)
	c.Assert(history[0].ChangedByUsername, qt.Equals, "alice")

	c.Assert(f.sink.types(), qt.DeepEquals, []events.EventType{
		events.EventTaskCreated,
		events.EventTaskUpdated,
		events.EventTaskUpdated,
		events.EventTaskStatusChanged,
	})
}

func TestOnlyOwnerMayModify(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newTaskFixture(defaultOwners)
	task, err := f.svc.Create(ctx, "alice", TaskInput{Title: "x"})
	c.Assert(err, qt.IsNil)

	_, err = f.svc.Update(ctx, "bob", task.ID, TaskInput{Title: "stolen"})
	c.Assert(err, qt.ErrorIs, ErrForbidden)
	c.Assert(f.svc.Delete(ctx, "bob", task.ID), qt.ErrorIs, ErrForbidden)

	c.Assert(f.svc.Delete(ctx, "alice", task.ID), qt.IsNil)
	_, err = f.svc.Get(ctx, task.ID)
	c.Assert(err, qt.ErrorIs, repository.ErrNotFound)
}

func TestListMine(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newTaskFixture(defaultOwners)
	_, err := f.svc.Create(ctx, "alice", TaskInput{Title: "a1"})
	c.Assert(err, qt.IsNil)
	_, err = f.svc.Create(ctx, "alice", TaskInput{Title: "a2", Status: domain.TaskStatusDone})
	c.Assert(err, qt.IsNil)
	_, err = f.svc.Create(ctx, "bob", TaskInput{Title: "b1"})
	c.Assert(err, qt.IsNil)

	mine, err := f.svc.ListMine(ctx, "alice", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(mine, qt.HasLen, 2)

	done := domain.TaskStatusDone
	mine, err = f.svc.ListMine(ctx, "alice", &done)
	c.Assert(err, qt.IsNil)
	c.Assert(mine, qt.HasLen, 1)
	c.Assert(mine[0].Title, qt.Equals, "a2")
}

func TestHistoryUnknownTask(t *testing.T) {
	c := qt.New(t)
	f := newTaskFixture(defaultOwners)
	_, err := f.svc.History(context.Background(), 42)
	c.Assert(err, qt.ErrorIs, repository.ErrNotFound)
}

// stalledSink blocks every delivery until its context ends, like a publisher
// dialing an unreachable Redis.
type stalledSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *stalledSink) Publish(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, ctx.Err())
	return ctx.Err()
}

func TestEventDeliveryIsBoundedAndDetached(t *testing.T) {
	c := qt.New(t)
	repo := repotest.NewTasks()
	sink := &stalledSink{}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, sink, zap.NewNop()).RegisterHandlers()
	svc := NewTaskService(TaskDependencies{
		TaskRepo:       repo,
		HistoryRepo:    repo,
		Owners:         defaultOwners,
		Dispatcher:     dispatcher,
		PublishTimeout: 100 * time.Millisecond,
		Logger:         zap.NewNop(),
	})

	task, err := svc.Create(context.Background(), "alice", TaskInput{Title: "x"})
	c.Assert(err, qt.IsNil)

	// Both events of a status change share one delivery deadline.
	start := time.Now()
	_, err = svc.Update(context.Background(), "alice", task.ID, TaskInput{Title: "x", Status: domain.TaskStatusDone})
	c.Assert(err, qt.IsNil)
	c.Assert(time.Since(start) < 190*time.Millisecond, qt.IsTrue, qt.Commentf("update took %v", time.Since(start)))

	// A request that is already gone does not abort delivery early.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(svc.Delete(cancelled, "alice", task.ID), qt.IsNil)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	c.Assert(sink.errs, qt.HasLen, 4)
	for _, err := range sink.errs {
		c.Assert(err, qt.ErrorIs, context.DeadlineExceeded)
	}
}
