package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskpulse/internal/domain"
)

// taskColumns is the shared list of columns for task queries, with group and
// assignee names denormalized from their tables.
var taskColumns = []string{
	"p.id", "p.group_id", "g.name", "p.title", "p.status", "p.due_date",
	"p.assigned_user_id", "COALESCE(u.name, '')", "p.created_at", "p.updated_at",
}

// TaskRepository handles database operations for tasks (projects).
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func selectTasks() sq.SelectBuilder {
	return psql.
		Select(taskColumns...).
		From("projects p").
		Join("groups g ON g.id = p.group_id").
		LeftJoin("users u ON u.id = p.assigned_user_id")
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.GroupID,
		&task.GroupName,
		&task.Title,
		&task.Status,
		&task.DueDate,
		&task.AssignedUserID,
		&task.AssigneeName,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a task by ID.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := selectTasks().
		Where(sq.Eq{"p.id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	return scanTask(r.pool.QueryRow(ctx, query, args...))
}

// ListActiveWithFutureDueDate finds PLANNING and IN_PROGRESS tasks due after now,
// soonest deadline first.
func (r *TaskRepository) ListActiveWithFutureDueDate(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	query, args, err := selectTasks().
		Where(sq.Eq{"p.status": domain.ActiveStatuses}).
		Where(sq.Gt{"p.due_date": now}).
		OrderBy("p.due_date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListActiveWithFutureDueDate query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active tasks: %w", err)
	}

	return scanTasks(rows)
}

// ListCompletedForUser returns the most recently completed tasks assigned to the user.
func (r *TaskRepository) ListCompletedForUser(
	ctx context.Context,
	userID string,
	limit int,
	requireDueDate bool,
) ([]*domain.Task, error) {
	qb := selectTasks().
		Where(sq.Eq{
			"p.assigned_user_id": userID,
			"p.status":           domain.TaskStatusDone,
		})

	if requireDueDate {
		qb = qb.Where(sq.NotEq{"p.due_date": nil})
	}

	query, args, err := qb.
		OrderBy("p.updated_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListCompletedForUser query for user %s: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completed tasks: %w", err)
	}

	return scanTasks(rows)
}
