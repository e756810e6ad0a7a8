package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-management/internal/domain"
)

// TaskFilter narrows task listings. Nil fields are not applied.
type TaskFilter struct {
	Status        *domain.TaskStatus
	OwnerID       *int64
	OwnerUsername *string
}

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	// Update writes task and, when change is non-nil, appends it to the audit log
	// in the same transaction.
	Update(ctx context.Context, task *domain.Task, change *domain.StatusChange) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, title, COALESCE(description, ''), status, owner_id, owner_username, created_at, updated_at`

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (title, description, status, owner_id, owner_username)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return translate(r.pool.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.OwnerID,
		task.OwnerUsername,
	).Scan(&task.ID, &task.CreatedAt))
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task, change *domain.StatusChange) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            UPDATE tasks SET title=$1, description=$2, status=$3, updated_at=NOW()
            WHERE id=$4
            RETURNING updated_at`
		if err := tx.QueryRow(ctx, query,
			task.Title,
			task.Description,
			task.Status,
			task.ID,
		).Scan(&task.UpdatedAt); err != nil {
			return translate(err)
		}

		if change == nil {
			return nil
		}
		change.TaskID = task.ID
		return insertStatusChange(ctx, tx, change)
	})
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return task, nil
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if filter.OwnerUsername != nil {
		args = append(args, *filter.OwnerUsername)
		conditions = append(conditions, fmt.Sprintf("owner_username=$%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.OwnerID,
		&task.OwnerUsername,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}
