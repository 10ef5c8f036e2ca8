package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskpulse/internal/domain"
)

const foreignKeyViolation = "23503"

// NotificationRepository handles database operations for notifications.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Exists reports whether an alert of the given type was already recorded for the task.
func (r *NotificationRepository) Exists(ctx context.Context, taskID string, alertType domain.AlertType) (bool, error) {
	query, args, err := psql.
		Select("1").
		Prefix("SELECT EXISTS (").
		From("notifications").
		Where(sq.Eq{
			"project_id": taskID,
			"alert_type": alertType,
		}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build Exists query for task %s: %w", taskID, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("query notification existence: %w", err)
	}

	return exists, nil
}

// Insert stores a notification. The unique (project_id, alert_type) index turns a
// second scheduler alert of the same kind into a no-op reported as ErrDuplicateAlert.
func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	query, args, err := psql.
		Insert("notifications").
		Columns(
			"user_id", "type", "title", "message", "is_read",
			"project_id", "group_id", "alert_type", "metadata",
		).
		Values(
			n.UserID,
			n.Category,
			n.Title,
			n.Message,
			n.IsRead,
			n.TaskID,
			n.GroupID,
			n.AlertType,
			metadataJSON,
		).
		Suffix("ON CONFLICT DO NOTHING RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Insert query for notification: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDuplicateAlert
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, fmt.Errorf("%w: unknown reference (%s)", domain.ErrInvalidNotification, pgErr.ConstraintName)
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	n.Metadata = metadata
	return n, nil
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	query, args, err := psql.
		Select(
			"id", "user_id", "type", "title", "message", "is_read",
			"project_id", "group_id", "alert_type", "metadata", "created_at",
		).
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListForUser query for user %s: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var (
			n            domain.Notification
			metadataJSON []byte
		)
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Category,
			&n.Title,
			&n.Message,
			&n.IsRead,
			&n.TaskID,
			&n.GroupID,
			&n.AlertType,
			&metadataJSON,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &n.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return notifications, nil
}
