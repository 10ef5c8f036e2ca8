// Package notify records deadline alerts and delivers them to users.
package notify

import (
	"context"
	"log/slog"

	"github.com/mtlprog/taskpulse/internal/domain"
)

// Gate answers whether an alert has already been recorded for a task.
type Gate struct {
	notifications domain.NotificationRepository
}

// NewGate creates a new Gate.
func NewGate(notifications domain.NotificationRepository) *Gate {
	return &Gate{notifications: notifications}
}

// AlreadySent reports whether a notification with (taskID, alertType) exists.
// Lookup failures are logged and reported as not sent, so an alert may be
// duplicated but is never silently dropped.
func (g *Gate) AlreadySent(ctx context.Context, taskID string, alertType domain.AlertType) bool {
	exists, err := g.notifications.Exists(ctx, taskID, alertType)
	if err != nil {
		slog.Error("dedup lookup failed, treating alert as unsent",
			"task_id", taskID,
			"alert_type", alertType,
			"error", err,
		)
		return false
	}
	return exists
}
