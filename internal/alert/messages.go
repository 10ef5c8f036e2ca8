package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/mtlprog/taskpulse/internal/domain"
)

// Titles shown to users for each scheduler alert.
const (
	TitleSmartStart       = "Smart Start Reminder"
	TitleDeadlineCritical = "24-Hour Deadline Alert"
	TitleDeadlineUrgent   = "Final Deadline Warning"
)

// Message is the rendered user-facing content of an alert.
type Message struct {
	Title    string
	Body     string
	Metadata map[string]any
}

// Compose renders the title, body and metadata for alertType on task.
func (c *Classifier) Compose(
	alertType domain.AlertType,
	task *domain.Task,
	profile domain.UserBehaviorProfile,
	now time.Time,
) (Message, error) {
	if task == nil || task.DueDate == nil {
		return Message{}, fmt.Errorf("compose %s: task has no due date", alertType)
	}

	hoursUntilDue := HoursUntil(*task.DueDate, now)
	metadata := map[string]any{
		"hours_until_due": hoursUntilDue,
		"due_date":        task.DueDate.UTC().Format(time.RFC3339),
	}

	switch alertType {
	case domain.AlertSmartStart:
		pct := OnTimePercent(profile)
		metadata["procrastination_coefficient"] = profile.ProcrastinationCoefficient
		metadata["on_time_delivery_rate"] = profile.OnTimeDeliveryRate
		metadata["realistic_start_time"] = c.RealisticStartTime(task, profile).UTC().Format(time.RFC3339)
		return Message{
			Title: TitleSmartStart,
			Body: fmt.Sprintf(
				"Based on your work patterns, now is the ideal time to start \"%s\". It's due in %d hours and you complete %d%% of tasks on time.",
				task.Title, hoursUntilDue, pct,
			),
			Metadata: metadata,
		}, nil
	case domain.AlertDeadlineCritical:
		return Message{
			Title:    TitleDeadlineCritical,
			Body:     fmt.Sprintf("\"%s\" is due in less than 24 hours. Make sure you're on track to finish it.", task.Title),
			Metadata: metadata,
		}, nil
	case domain.AlertDeadlineUrgent:
		metadata["urgency"] = "highest"
		return Message{
			Title:    TitleDeadlineUrgent,
			Body:     fmt.Sprintf("URGENT: \"%s\" is due in 2 hours! This is your final reminder.", task.Title),
			Metadata: metadata,
		}, nil
	default:
		return Message{}, fmt.Errorf("compose %q: %w", alertType, domain.ErrInvalidAlertType)
	}
}

// HoursUntil returns the whole hours from now until due, rounded to nearest.
func HoursUntil(due, now time.Time) int {
	return int(math.Round(due.Sub(now).Hours()))
}

// OnTimePercent returns the on-time delivery rate as a rounded percentage.
func OnTimePercent(profile domain.UserBehaviorProfile) int {
	return int(math.Round(profile.OnTimeDeliveryRate * 100))
}
