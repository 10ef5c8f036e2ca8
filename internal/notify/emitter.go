package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/taskpulse/internal/alert"
	"github.com/mtlprog/taskpulse/internal/domain"
)

// EventNotification is the live-channel event name for a new notification.
const EventNotification = "notification"

// EmitParams describes a notification to create.
type EmitParams struct {
	UserID    string
	Category  domain.Category
	Title     string
	Message   string
	TaskID    *string
	GroupID   *string
	AlertType *domain.AlertType
	Metadata  map[string]any
}

// Validate checks the required fields.
func (p EmitParams) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidNotification)
	}
	if !p.Category.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, p.Category)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidNotification)
	}
	if p.AlertType != nil {
		if !p.AlertType.IsValid() {
			return fmt.Errorf("%w: %s", domain.ErrInvalidAlertType, *p.AlertType)
		}
		if p.TaskID == nil {
			return fmt.Errorf("%w: alert notifications require a task id", domain.ErrInvalidNotification)
		}
	}
	return nil
}

// AlertParams builds the emission for a scheduler deadline alert on task.
func AlertParams(task *domain.Task, alertType domain.AlertType, msg alert.Message) (EmitParams, error) {
	if !task.IsAssigned() {
		return EmitParams{}, domain.ErrNoAssignee
	}

	taskID := task.ID
	at := alertType
	params := EmitParams{
		UserID:    *task.AssignedUserID,
		Category:  domain.CategoryDeadlineApproaching,
		Title:     msg.Title,
		Message:   msg.Body,
		TaskID:    &taskID,
		AlertType: &at,
		Metadata:  msg.Metadata,
	}
	if task.GroupID != "" {
		groupID := task.GroupID
		params.GroupID = &groupID
	}
	return params, nil
}

// Payload is the JSON shape of a notification sent over the live channel.
type Payload struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Category  domain.Category   `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	IsRead    bool              `json:"is_read"`
	TaskID    *string           `json:"project_id"`
	GroupID   *string           `json:"group_id"`
	AlertType *domain.AlertType `json:"alert_type"`
	Metadata  map[string]any    `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewPayload converts a stored notification into its wire shape.
func NewPayload(n *domain.Notification) Payload {
	return Payload{
		ID:        n.ID,
		UserID:    n.UserID,
		Category:  n.Category,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		TaskID:    n.TaskID,
		GroupID:   n.GroupID,
		AlertType: n.AlertType,
		Metadata:  n.Metadata,
		CreatedAt: n.CreatedAt,
	}
}

// Emitter persists notifications and pushes them to the recipient.
type Emitter struct {
	notifications domain.NotificationRepository
	pusher        domain.Pusher
}

// NewEmitter creates a new Emitter. pusher may be nil to disable live delivery.
func NewEmitter(notifications domain.NotificationRepository, pusher domain.Pusher) *Emitter {
	return &Emitter{
		notifications: notifications,
		pusher:        pusher,
	}
}

// Emit stores the notification and then pushes it to the user's live channel.
// Storage errors are returned, including domain.ErrDuplicateAlert. Push errors
// are logged and never fail the emission.
func (e *Emitter) Emit(ctx context.Context, p EmitParams) (*domain.Notification, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	n, err := e.notifications.Insert(ctx, &domain.Notification{
		UserID:    p.UserID,
		Category:  p.Category,
		Title:     p.Title,
		Message:   p.Message,
		TaskID:    p.TaskID,
		GroupID:   p.GroupID,
		AlertType: p.AlertType,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	e.push(ctx, n)
	return n, nil
}

func (e *Emitter) push(ctx context.Context, n *domain.Notification) {
	if e.pusher == nil {
		return
	}
	if err := e.pusher.Push(ctx, n.UserID, EventNotification, NewPayload(n)); err != nil {
		slog.Warn("live push failed",
			"notification_id", n.ID,
			"user_id", n.UserID,
			"error", err,
		)
	}
}
