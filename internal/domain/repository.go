package domain

import (
	"context"
	"time"
)

//go:generate mockgen -source=repository.go -destination=repository_mock.go -package=domain

// TaskRepository reads tasks for deadline monitoring and behaviour analysis.
type TaskRepository interface {
	// ListActiveWithFutureDueDate returns PLANNING/IN_PROGRESS tasks whose due date is after now.
	ListActiveWithFutureDueDate(ctx context.Context, now time.Time) ([]*Task, error)
	// ListCompletedForUser returns the user's most recent DONE tasks, newest first.
	ListCompletedForUser(ctx context.Context, userID string, limit int, requireDueDate bool) ([]*Task, error)
}

// HistoryRepository reads task history events.
type HistoryRepository interface {
	// ListCompletedEventsForUser returns up to limit recent completion events
	// carrying a positive recorded duration, newest first.
	ListCompletedEventsForUser(ctx context.Context, userID string, limit int) ([]*TaskHistoryEvent, error)
}

// NotificationRepository persists notifications.
type NotificationRepository interface {
	Exists(ctx context.Context, taskID string, alertType AlertType) (bool, error)
	// Insert stores the notification, filling ID and CreatedAt.
	// Returns ErrDuplicateAlert when the (task, alert type) pair is already recorded.
	Insert(ctx context.Context, n *Notification) (*Notification, error)
}

// UserRepository looks up users.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*User, error)
}

// Pusher delivers events to a user's live connections. Delivery is best-effort.
type Pusher interface {
	Push(ctx context.Context, userID string, event string, payload any) error
}
