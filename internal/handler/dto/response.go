package dto

import (
	"time"

	"github.com/mtlprog/taskpulse/internal/domain"
	"github.com/mtlprog/taskpulse/internal/notify"
	"github.com/mtlprog/taskpulse/internal/scheduler"
)

// NotificationsListResponse represents the response for GET /users/{id}/notifications.
type NotificationsListResponse struct {
	Notifications []notify.Payload `json:"notifications"`
	Limit         int              `json:"limit"`
}

// NewNotificationsListResponse converts stored notifications to their wire shape.
func NewNotificationsListResponse(notifications []*domain.Notification, limit int) NotificationsListResponse {
	out := make([]notify.Payload, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notify.NewPayload(n))
	}
	return NotificationsListResponse{
		Notifications: out,
		Limit:         limit,
	}
}

// ProfileResponse represents the response for GET /users/{id}/profile.
type ProfileResponse struct {
	UserID  string                     `json:"user_id"`
	Name    string                     `json:"name"`
	Profile domain.UserBehaviorProfile `json:"profile"`
}

// CheckResponse represents the response for POST /notifications/check.
type CheckResponse struct {
	StartedAt         time.Time `json:"started_at"`
	TasksScanned      int       `json:"tasks_scanned"`
	TasksProcessed    int       `json:"tasks_processed"`
	SkippedUnassigned int       `json:"skipped_unassigned"`
	AlertsEmitted     int       `json:"alerts_emitted"`
	AlreadySent       int       `json:"already_sent"`
	TaskFailures      int       `json:"task_failures"`
	DurationMs        int64     `json:"duration_ms"`
}

// NewCheckResponse converts a run report.
func NewCheckResponse(r scheduler.RunReport) CheckResponse {
	return CheckResponse{
		StartedAt:         r.StartedAt,
		TasksScanned:      r.TasksScanned,
		TasksProcessed:    r.TasksProcessed,
		SkippedUnassigned: r.SkippedUnassigned,
		AlertsEmitted:     r.AlertsEmitted,
		AlreadySent:       r.AlreadySent,
		TaskFailures:      r.TaskFailures,
		DurationMs:        r.Duration.Milliseconds(),
	}
}

// SchedulerStatusResponse represents the response for GET /scheduler/status.
type SchedulerStatusResponse struct {
	Running bool `json:"running"`
}
