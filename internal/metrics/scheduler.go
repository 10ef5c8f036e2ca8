// Package metrics defines the OpenTelemetry instruments recorded by the scheduler.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mtlprog/taskpulse/internal/domain"
)

const schedulerMeterName = "taskpulse.scheduler"

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// SchedulerMetrics records scheduler run activity.
type SchedulerMetrics struct {
	runs          metric.Int64Counter
	ticksSkipped  metric.Int64Counter
	alertsEmitted metric.Int64Counter
	taskFailures  metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// NewSchedulerMetrics creates the instruments on provider, or on the global
// provider when provider is nil.
func NewSchedulerMetrics(provider metric.MeterProvider) (*SchedulerMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(schedulerMeterName)

	runs, err := meter.Int64Counter(
		"taskpulse_scheduler_runs_total",
		metric.WithDescription("Total number of completed notification check runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	ticksSkipped, err := meter.Int64Counter(
		"taskpulse_scheduler_ticks_skipped_total",
		metric.WithDescription("Triggers dropped because a run was already in progress"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	alertsEmitted, err := meter.Int64Counter(
		"taskpulse_alerts_emitted_total",
		metric.WithDescription("Deadline alerts persisted"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	taskFailures, err := meter.Int64Counter(
		"taskpulse_task_failures_total",
		metric.WithDescription("Tasks whose alert pipeline failed"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"taskpulse_scheduler_run_duration_seconds",
		metric.WithDescription("Notification check run duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
		),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerMetrics{
		runs:          runs,
		ticksSkipped:  ticksSkipped,
		alertsEmitted: alertsEmitted,
		taskFailures:  taskFailures,
		runDuration:   runDuration,
	}, nil
}

func (m *SchedulerMetrics) RecordRun(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *SchedulerMetrics) RecordTickSkipped(ctx context.Context) {
	m.ticksSkipped.Add(ctx, 1)
}

func (m *SchedulerMetrics) RecordAlertEmitted(ctx context.Context, alertType domain.AlertType) {
	m.alertsEmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("alert_type", string(alertType)),
	))
}

func (m *SchedulerMetrics) RecordTaskFailure(ctx context.Context) {
	m.taskFailures.Add(ctx, 1)
}
