package events

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestDispatcherRunsEveryHandler(t *testing.T) {
	c := qt.New(t)
	d := NewInMemoryDispatcher()

	var calls []string
	d.Subscribe(EventTaskCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTaskCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTaskDeleted, func(_ context.Context, e Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTaskCreated, TaskID: 7})
	c.Assert(err, qt.ErrorMatches, "boom")
	c.Assert(calls, qt.DeepEquals, []string{"first", "second"})
}

func TestRedisPublisherNilClient(t *testing.T) {
	c := qt.New(t)
	p := NewRedisPublisher(nil, "task-events")
	c.Assert(p.Publish(context.Background(), Event{ID: "x"}), qt.IsNil)
}
