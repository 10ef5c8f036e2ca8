package domain

import "time"

// Category classifies a notification for display and filtering.
type Category string

const (
	CategoryTaskAssigned        Category = "task_assigned"
	CategoryDeadlineApproaching Category = "deadline_approaching"
	CategoryStatusChanged       Category = "status_changed"
)

// IsValid checks if the category is one of the allowed values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryTaskAssigned, CategoryDeadlineApproaching, CategoryStatusChanged:
		return true
	default:
		return false
	}
}

// AlertType discriminates scheduler-originated deadline alerts.
// At most one notification may exist per (task, alert type).
type AlertType string

const (
	AlertSmartStart       AlertType = "smart_start_reminder"
	AlertDeadlineCritical AlertType = "deadline_critical"
	AlertDeadlineUrgent   AlertType = "deadline_urgent"
)

// AlertTypes lists every scheduler alert type in evaluation order.
var AlertTypes = []AlertType{AlertSmartStart, AlertDeadlineCritical, AlertDeadlineUrgent}

// IsValid checks if the alert type is one of the scheduler categories.
func (a AlertType) IsValid() bool {
	switch a {
	case AlertSmartStart, AlertDeadlineCritical, AlertDeadlineUrgent:
		return true
	default:
		return false
	}
}

// Notification is a persisted alert delivered to a user.
type Notification struct {
	ID        string
	UserID    string
	Category  Category
	Title     string
	Message   string
	IsRead    bool
	TaskID    *string
	GroupID   *string
	AlertType *AlertType
	Metadata  map[string]any
	CreatedAt time.Time
}
