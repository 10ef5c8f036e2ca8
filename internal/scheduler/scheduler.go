// Package scheduler drives the periodic deadline check: it scans active tasks and
// emits each due alert at most once.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mtlprog/taskpulse/internal/alert"
	"github.com/mtlprog/taskpulse/internal/analytics"
	"github.com/mtlprog/taskpulse/internal/clock"
	"github.com/mtlprog/taskpulse/internal/config"
	"github.com/mtlprog/taskpulse/internal/domain"
	"github.com/mtlprog/taskpulse/internal/metrics"
	"github.com/mtlprog/taskpulse/internal/notify"
)

// RunReport summarizes one check run.
type RunReport struct {
	StartedAt         time.Time
	TasksScanned      int
	TasksProcessed    int
	SkippedUnassigned int
	AlertsEmitted     int
	AlreadySent       int
	TaskFailures      int
	Duration          time.Duration
}

// Scheduler runs the notification check on a fixed cadence. At most one run
// executes at a time; triggers arriving during a run are dropped.
type Scheduler struct {
	tasks      domain.TaskRepository
	estimator  *analytics.Estimator
	classifier *alert.Classifier
	gate       *notify.Gate
	emitter    *notify.Emitter
	clock      clock.Clock
	metrics    *metrics.SchedulerMetrics

	interval    time.Duration
	callTimeout time.Duration

	running atomic.Bool
	cron    *cron.Cron
	baseCtx context.Context
}

// New creates a Scheduler. pusher may be nil to disable live delivery.
func New(
	cfg config.Scheduler,
	tasks domain.TaskRepository,
	history domain.HistoryRepository,
	notifications domain.NotificationRepository,
	pusher domain.Pusher,
	clk clock.Clock,
	m *metrics.SchedulerMetrics,
) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = config.DefaultCheckInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = config.DefaultCallTimeout
	}

	return &Scheduler{
		tasks:       tasks,
		estimator:   analytics.NewEstimator(tasks, history),
		classifier:  alert.NewClassifier(cfg.NominalEstimate),
		gate:        notify.NewGate(notifications),
		emitter:     notify.NewEmitter(notifications, pusher),
		clock:       clk,
		metrics:     m,
		interval:    cfg.CheckInterval,
		callTimeout: cfg.CallTimeout,
	}
}

// Start schedules a check every interval. Runs use ctx, so cancelling it
// aborts an in-flight run between tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	s.baseCtx = ctx
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		s.cron = nil
		return fmt.Errorf("schedule notification check: %w", err)
	}
	s.cron.Start()

	slog.Info("notification scheduler started", "interval", s.interval)
	return nil
}

// Stop halts the cadence. The returned context is done once an in-flight run finishes.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

// IsRunning reports whether a check is executing.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// TriggerManualCheck runs a check immediately. It returns domain.ErrRunInProgress
// if a run is already executing; the request is not queued.
func (s *Scheduler) TriggerManualCheck(ctx context.Context) (RunReport, error) {
	slog.Info("manual notification check requested")
	return s.RunOnce(ctx)
}

// RunOnce executes a single check unless another is in progress.
func (s *Scheduler) RunOnce(ctx context.Context) (RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return RunReport{}, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	started := time.Now()
	report, err := s.run(ctx)
	report.Duration = time.Since(started)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	if s.metrics != nil {
		s.metrics.RecordRun(ctx, outcome, report.Duration)
	}

	if err != nil {
		slog.Error("notification check failed",
			"error", err,
			"tasks_processed", report.TasksProcessed,
			"duration", report.Duration,
		)
		return report, err
	}

	slog.Info("notification check completed",
		"tasks_scanned", report.TasksScanned,
		"tasks_processed", report.TasksProcessed,
		"skipped_unassigned", report.SkippedUnassigned,
		"alerts_emitted", report.AlertsEmitted,
		"already_sent", report.AlreadySent,
		"task_failures", report.TaskFailures,
		"duration", report.Duration,
	)
	return report, nil
}

func (s *Scheduler) tick() {
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.RunOnce(ctx); errors.Is(err, domain.ErrRunInProgress) {
		slog.Debug("previous notification check still running, skipping tick")
		if s.metrics != nil {
			s.metrics.RecordTickSkipped(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) (RunReport, error) {
	now := s.clock.Now()
	report := RunReport{StartedAt: now}

	listCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	tasks, err := s.tasks.ListActiveWithFutureDueDate(listCtx, now)
	cancel()
	if err != nil {
		return report, fmt.Errorf("list active tasks: %w", err)
	}
	report.TasksScanned = len(tasks)

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run interrupted: %w", err)
		}

		if !task.IsAssigned() {
			report.SkippedUnassigned++
			continue
		}

		result, err := s.processTask(ctx, task)
		report.AlertsEmitted += result.emitted
		report.AlreadySent += result.alreadySent
		if err != nil {
			report.TaskFailures++
			if s.metrics != nil {
				s.metrics.RecordTaskFailure(ctx)
			}
			slog.Error("failed to process task alerts",
				"task_id", task.ID,
				"user_id", *task.AssignedUserID,
				"error", err,
			)
			continue
		}
		report.TasksProcessed++
	}

	return report, nil
}

type taskResult struct {
	emitted     int
	alreadySent int
}

// processTask runs estimate, classify, dedup and emit for one task. Panics are
// converted to errors so the remaining tasks still run.
func (s *Scheduler) processTask(ctx context.Context, task *domain.Task) (res taskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing task: %v", r)
		}
	}()

	userID := *task.AssignedUserID

	profileCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	profile := s.estimator.ComputeProfile(profileCtx, userID)
	cancel()

	now := s.clock.Now()
	for _, alertType := range s.classifier.Classify(task, profile, now) {
		if s.alreadySent(ctx, task.ID, alertType) {
			slog.Debug("alert already sent", "task_id", task.ID, "alert_type", alertType)
			res.alreadySent++
			continue
		}

		msg, err := s.classifier.Compose(alertType, task, profile, now)
		if err != nil {
			return res, err
		}
		params, err := notify.AlertParams(task, alertType, msg)
		if err != nil {
			return res, err
		}

		emitCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		n, err := s.emitter.Emit(emitCtx, params)
		cancel()
		if errors.Is(err, domain.ErrDuplicateAlert) {
			slog.Debug("alert recorded concurrently", "task_id", task.ID, "alert_type", alertType)
			res.alreadySent++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("emit %s: %w", alertType, err)
		}

		res.emitted++
		if s.metrics != nil {
			s.metrics.RecordAlertEmitted(ctx, alertType)
		}
		slog.Info("deadline alert emitted",
			"task_id", task.ID,
			"user_id", userID,
			"alert_type", alertType,
			"notification_id", n.ID,
		)
	}

	return res, nil
}

func (s *Scheduler) alreadySent(ctx context.Context, taskID string, alertType domain.AlertType) bool {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.gate.AlreadySent(ctx, taskID, alertType)
}
