package domain

import "time"

// TaskStatus represents the lifecycle status of a task (project).
type TaskStatus string

const (
	TaskStatusPlanning   TaskStatus = "PLANNING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// IsActive returns true if tasks in this status are monitored for deadlines.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusPlanning || s == TaskStatusInProgress
}

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPlanning, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// ActiveStatuses lists the statuses eligible for deadline monitoring.
var ActiveStatuses = []TaskStatus{TaskStatusPlanning, TaskStatusInProgress}

// Task represents a project tracked by a group, optionally assigned to a user.
type Task struct {
	ID             string
	GroupID        string
	GroupName      string
	Title          string
	Status         TaskStatus
	DueDate        *time.Time
	AssignedUserID *string
	AssigneeName   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsEligible reports whether the task should be monitored at the given instant:
// active status and a due date strictly in the future.
func (t *Task) IsEligible(now time.Time) bool {
	return t.Status.IsActive() && t.DueDate != nil && t.DueDate.After(now)
}

// IsAssigned checks if the task has an assigned user.
func (t *Task) IsAssigned() bool {
	return t.AssignedUserID != nil && *t.AssignedUserID != ""
}

// CompletedAt returns the completion instant of a DONE task.
// The last status transition is recorded in UpdatedAt.
func (t *Task) CompletedAt() time.Time {
	return t.UpdatedAt
}
