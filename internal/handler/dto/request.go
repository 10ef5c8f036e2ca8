package dto

import "github.com/mtlprog/taskpulse/internal/domain"

// CreateNotificationRequest represents the request body for POST /notifications.
// Deadline alert types are reserved for the scheduler and cannot be set here.
type CreateNotificationRequest struct {
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ProjectID *string        `json:"project_id,omitempty"`
	GroupID   *string        `json:"group_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Category returns the requested notification category.
func (r CreateNotificationRequest) Category() domain.Category {
	return domain.Category(r.Type)
}
