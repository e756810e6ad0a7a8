package service

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/task-management/internal/events"
)

type staticOwners struct {
	ids map[string]int64
	err error
}

func (o staticOwners) ResolveUserID(_ context.Context, username string) (int64, error) {
	if o.err != nil {
		return 0, o.err
	}
	return o.ids[username], nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.EventType
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type memStateStore struct {
	mu     sync.Mutex
	states map[string]string
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: map[string]string{}}
}

func (s *memStateStore) Save(_ context.Context, state, provider string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = provider
	return nil
}

func (s *memStateStore) Consume(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	provider, ok := s.states[state]
	if !ok {
		return "", ErrInvalidState
	}
	delete(s.states, state)
	return provider, nil
}
