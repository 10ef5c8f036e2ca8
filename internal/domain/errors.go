package domain

import "errors"

// Domain-specific errors.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrUserNotFound = errors.New("user not found")
	ErrNoAssignee   = errors.New("task has no assigned user")

	// ErrDuplicateAlert is returned when a (task, alert type) notification already exists.
	ErrDuplicateAlert = errors.New("alert already recorded for task")

	// ErrRunInProgress is returned when a check is requested while another run is executing.
	ErrRunInProgress = errors.New("notification check already running")

	ErrInvalidAlertType    = errors.New("invalid alert type")
	ErrInvalidCategory     = errors.New("invalid notification category")
	ErrInvalidNotification = errors.New("invalid notification")
)
