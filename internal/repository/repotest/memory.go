// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository"
)

var (
	_ repository.UserRepository         = (*Users)(nil)
	_ repository.TaskRepository         = (*Tasks)(nil)
	_ repository.StatusChangeRepository = (*Tasks)(nil)
)

// Users is a UserRepository keyed by username.
type Users struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*domain.User
	// Err, when set, fails Create and GetByUsername.
	Err    error
}

// NewUsers seeds the repository, assigning ids in order.
func NewUsers(users ...*domain.User) *Users {
	r := &Users{users: map[string]*domain.User{}}
	for _, u := range users {
		r.nextID++
		u.ID = r.nextID
		r.users[u.Username] = u
	}
	return r
}

func (r *Users) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.Username] = &copied
	return nil
}

func (r *Users) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.Username] = &copied
	return nil
}

func (r *Users) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *Users) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

// Tasks is a TaskRepository that also serves the status change log.
type Tasks struct {
	mu      sync.Mutex
	nextID  int64
	tasks   map[int64]*domain.Task
	changes []domain.StatusChange
}

// NewTasks returns an empty repository.
func NewTasks() *Tasks {
	return &Tasks{tasks: map[int64]*domain.Task{}}
}

func (r *Tasks) Create(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task.ID = r.nextID
	task.CreatedAt = time.Now()
	copied := *task
	r.tasks[task.ID] = &copied
	return nil
}

func (r *Tasks) Update(_ context.Context, task *domain.Task, change *domain.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	task.UpdatedAt = &now
	copied := *task
	r.tasks[task.ID] = &copied
	if change != nil {
		change.TaskID = task.ID
		change.ID = int64(len(r.changes) + 1)
		change.ChangedAt = now
		r.changes = append(r.changes, *change)
	}
	return nil
}

func (r *Tasks) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *Tasks) GetByID(_ context.Context, id int64) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (r *Tasks) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for id := int64(1); id <= r.nextID; id++ {
		task, ok := r.tasks[id]
		if !ok {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.OwnerID != nil && task.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.OwnerUsername != nil && task.OwnerUsername != *filter.OwnerUsername {
			continue
		}
		out = append(out, *task)
	}
	return out, nil
}

func (r *Tasks) ListByTask(_ context.Context, taskID int64) ([]domain.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StatusChange
	for _, c := range r.changes {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}
