// Package analytics derives per-user delivery behaviour from completed-task history.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/taskpulse/internal/domain"
)

const (
	// CompletedTaskSampleSize caps how many recent completed tasks feed the coefficient.
	CompletedTaskSampleSize = 30

	// DurationSampleSize caps how many completion events feed the average duration.
	DurationSampleSize = 50

	// lateDaysPerStep is the number of days late that adds 1.0 to a task's contribution.
	lateDaysPerStep = 7.0
)

// Estimator computes UserBehaviorProfile values from stored history.
type Estimator struct {
	tasks   domain.TaskRepository
	history domain.HistoryRepository
}

// NewEstimator creates a new Estimator.
func NewEstimator(tasks domain.TaskRepository, history domain.HistoryRepository) *Estimator {
	return &Estimator{
		tasks:   tasks,
		history: history,
	}
}

// ComputeProfile returns the user's behaviour profile. It never fails: any
// estimation error yields domain.DefaultProfile so deadline alerting proceeds.
func (e *Estimator) ComputeProfile(ctx context.Context, userID string) domain.UserBehaviorProfile {
	profile, err := e.Estimate(ctx, userID)
	if err != nil {
		slog.Warn("behaviour estimation failed, using default profile",
			"user_id", userID,
			"error", err,
		)
		return domain.DefaultProfile
	}
	return profile
}

// Estimate computes the profile and reports repository failures.
func (e *Estimator) Estimate(ctx context.Context, userID string) (domain.UserBehaviorProfile, error) {
	completed, err := e.tasks.ListCompletedForUser(ctx, userID, CompletedTaskSampleSize, true)
	if err != nil {
		return domain.UserBehaviorProfile{}, fmt.Errorf("list completed tasks for user %s: %w", userID, err)
	}

	events, err := e.history.ListCompletedEventsForUser(ctx, userID, DurationSampleSize)
	if err != nil {
		return domain.UserBehaviorProfile{}, fmt.Errorf("list completion events for user %s: %w", userID, err)
	}

	coefficient, onTimeRate := DeliveryStats(completed)

	return domain.UserBehaviorProfile{
		ProcrastinationCoefficient:   coefficient,
		OnTimeDeliveryRate:           onTimeRate,
		AverageCompletionTimeMinutes: AverageDuration(events),
	}, nil
}

// DeliveryStats computes the procrastination coefficient and on-time delivery rate
// from completed tasks. Tasks without a due date are ignored; with no usable samples
// the documented defaults are returned.
func DeliveryStats(completed []*domain.Task) (coefficient, onTimeRate float64) {
	var (
		samples       int
		onTime        int
		contributions float64
	)

	for _, task := range completed {
		if task == nil || task.DueDate == nil {
			continue
		}
		samples++

		daysLate := task.CompletedAt().Sub(*task.DueDate).Hours() / 24
		if daysLate > 0 {
			contributions += 1 + daysLate/lateDaysPerStep
		} else {
			contributions++
			onTime++
		}
	}

	if samples == 0 {
		return domain.DefaultProcrastinationCoefficient, domain.DefaultOnTimeDeliveryRate
	}

	coefficient = clamp(
		contributions/float64(samples),
		domain.MinProcrastinationCoefficient,
		domain.MaxProcrastinationCoefficient,
	)
	onTimeRate = float64(onTime) / float64(samples)
	return coefficient, onTimeRate
}

// AverageDuration returns the mean recorded duration in minutes of events with a
// positive duration, or the default when there are none.
func AverageDuration(events []*domain.TaskHistoryEvent) float64 {
	var (
		total int
		count int
	)
	for _, e := range events {
		if e == nil || !e.HasDuration() {
			continue
		}
		total += *e.ActualDurationMinutes
		count++
	}

	if count == 0 {
		return domain.DefaultAverageCompletionTimeMinutes
	}
	return float64(total) / float64(count)
}

// RealisticStartTime is the instant a user should start a task given the nominal
// estimate scaled by their procrastination coefficient.
func RealisticStartTime(due time.Time, nominal time.Duration, profile domain.UserBehaviorProfile) time.Time {
	buffer := time.Duration(float64(nominal) * profile.ProcrastinationCoefficient)
	return due.Add(-buffer)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
