package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskpulse/internal/domain"
)

// HistoryRepository handles database operations for task history events.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Create appends a history event.
func (r *HistoryRepository) Create(ctx context.Context, event *domain.TaskHistoryEvent) error {
	query, args, err := psql.
		Insert("task_history").
		Columns("project_id", "user_id", "action", "actual_duration_minutes").
		Values(event.TaskID, event.UserID, event.Action, event.ActualDurationMinutes).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&event.ID, &event.CreatedAt); err != nil {
		return fmt.Errorf("create history event: %w", err)
	}

	return nil
}

// ListCompletedEventsForUser retrieves the user's recent completion events with a recorded duration.
func (r *HistoryRepository) ListCompletedEventsForUser(
	ctx context.Context,
	userID string,
	limit int,
) ([]*domain.TaskHistoryEvent, error) {
	query, args, err := psql.
		Select("id", "project_id", "user_id", "action", "actual_duration_minutes", "created_at").
		From("task_history").
		Where(sq.Eq{
			"user_id": userID,
			"action":  domain.HistoryActionCompleted,
		}).
		Where(sq.Gt{"actual_duration_minutes": 0}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history events: %w", err)
	}
	defer rows.Close()

	var events []*domain.TaskHistoryEvent
	for rows.Next() {
		var event domain.TaskHistoryEvent
		err := rows.Scan(
			&event.ID,
			&event.TaskID,
			&event.UserID,
			&event.Action,
			&event.ActualDurationMinutes,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}
