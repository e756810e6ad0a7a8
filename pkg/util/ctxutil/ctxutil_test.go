package ctxutil

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestBudget(t *testing.T) {
	c := qt.New(t)
	d, err := Budget(context.Background(), time.Second)
	c.Assert(err, qt.IsNil)
	c.Assert(d, qt.Equals, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	d, err = Budget(ctx, time.Second)
	c.Assert(err, qt.IsNil)
	c.Assert(d <= 100*time.Millisecond, qt.IsTrue)

	d, err = Budget(ctx, 10*time.Millisecond)
	c.Assert(err, qt.IsNil)
	c.Assert(d, qt.Equals, 10*time.Millisecond)
}

func TestBudgetDoneContext(t *testing.T) {
	c := qt.New(t)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Budget(cancelled, time.Second)
	c.Assert(err, qt.ErrorIs, context.Canceled)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = Budget(expired, time.Second)
	c.Assert(err, qt.ErrorIs, context.DeadlineExceeded)
}
