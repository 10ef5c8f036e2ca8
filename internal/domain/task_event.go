package domain

import "time"

// HistoryAction represents the kind of task history event.
type HistoryAction string

const (
	HistoryActionCreated       HistoryAction = "created"
	HistoryActionStatusChanged HistoryAction = "status_changed"
	HistoryActionAssigned      HistoryAction = "assigned"
	HistoryActionCompleted     HistoryAction = "completed"
)

// TaskHistoryEvent is an append-only record of a task transition attributed to a user.
type TaskHistoryEvent struct {
	ID                    string
	TaskID                string
	UserID                string
	Action                HistoryAction
	ActualDurationMinutes *int // recorded on completion, nil when unknown
	CreatedAt             time.Time
}

// HasDuration returns true if the event carries a positive recorded duration.
func (e *TaskHistoryEvent) HasDuration() bool {
	return e.ActualDurationMinutes != nil && *e.ActualDurationMinutes > 0
}
