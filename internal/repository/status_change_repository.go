package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-management/internal/domain"
)

// StatusChangeRepository reads the task status audit log.
// Entries are written by TaskRepository.Update.
type StatusChangeRepository interface {
	ListByTask(ctx context.Context, taskID int64) ([]domain.StatusChange, error)
}

type statusChangeRepository struct {
	pool *pgxpool.Pool
}

// NewStatusChangeRepository builds repository.
func NewStatusChangeRepository(pool *pgxpool.Pool) StatusChangeRepository {
	return &statusChangeRepository{pool: pool}
}

func insertStatusChange(ctx context.Context, tx pgx.Tx, change *domain.StatusChange) error {
	const query = `
        INSERT INTO status_changes (task_id, previous_status, new_status, changed_by_user_id, changed_by_username)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, change_date`
	return tx.QueryRow(ctx, query,
		change.TaskID,
		change.PreviousStatus,
		change.NewStatus,
		change.ChangedByUserID,
		change.ChangedByUsername,
	).Scan(&change.ID, &change.ChangedAt)
}

func (r *statusChangeRepository) ListByTask(ctx context.Context, taskID int64) ([]domain.StatusChange, error) {
	const query = `
        SELECT id, task_id, previous_status, new_status, change_date, changed_by_user_id, COALESCE(changed_by_username, '')
        FROM status_changes WHERE task_id=$1 ORDER BY change_date ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusChange
	for rows.Next() {
		var change domain.StatusChange
		if err := rows.Scan(
			&change.ID,
			&change.TaskID,
			&change.PreviousStatus,
			&change.NewStatus,
			&change.ChangedAt,
			&change.ChangedByUserID,
			&change.ChangedByUsername,
		); err != nil {
			return nil, err
		}
		result = append(result, change)
	}
	return result, rows.Err()
}
