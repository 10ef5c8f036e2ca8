// Package alert decides which deadline alerts are due for a task and renders their text.
package alert

import (
	"time"

	"github.com/mtlprog/taskpulse/internal/analytics"
	"github.com/mtlprog/taskpulse/internal/config"
	"github.com/mtlprog/taskpulse/internal/domain"
)

// Fixed alert windows before the due date.
const (
	CriticalWindow = 24 * time.Hour
	UrgentWindow   = 2 * time.Hour
)

// Classifier evaluates alert thresholds for a single task. It does not consult
// persisted notifications; deduplication is the caller's concern.
type Classifier struct {
	nominal time.Duration
}

// NewClassifier creates a Classifier. A non-positive nominal estimate falls back
// to config.DefaultNominalEstimate.
func NewClassifier(nominal time.Duration) *Classifier {
	if nominal <= 0 {
		nominal = config.DefaultNominalEstimate
	}
	return &Classifier{nominal: nominal}
}

// RealisticStartTime returns when the task's assignee should start, given their profile.
func (c *Classifier) RealisticStartTime(task *domain.Task, profile domain.UserBehaviorProfile) time.Time {
	if task.DueDate == nil {
		return time.Time{}
	}
	return analytics.RealisticStartTime(*task.DueDate, c.nominal, profile)
}

// Classify returns the alert types whose firing condition holds at now, in
// domain.AlertTypes order. Tasks that are not eligible produce no alerts.
func (c *Classifier) Classify(task *domain.Task, profile domain.UserBehaviorProfile, now time.Time) []domain.AlertType {
	if task == nil || !task.IsEligible(now) {
		return nil
	}
	due := *task.DueDate

	var fired []domain.AlertType
	if !now.Before(c.RealisticStartTime(task, profile)) {
		fired = append(fired, domain.AlertSmartStart)
	}
	if !now.Before(due.Add(-CriticalWindow)) {
		fired = append(fired, domain.AlertDeadlineCritical)
	}
	if !now.Before(due.Add(-UrgentWindow)) {
		fired = append(fired, domain.AlertDeadlineUrgent)
	}
	return fired
}
