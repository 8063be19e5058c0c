package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/scheduler"
)

type schedulerService struct {
	reconcile *scheduler.Scheduler
	reminders *scheduler.Scheduler
	logger    *zap.Logger
}

// NewSchedulerService owns the periodic reconcile pass and, when enabled,
// the daily event reminder run. reminders may be nil.
func NewSchedulerService(
	cfg *config.Config,
	reconciler ReconcileService,
	reminders ReminderService,
	logger *zap.Logger,
) SchedulerService {
	svc := &schedulerService{logger: logger}

	limit, window := cfg.Reconciler.Limit, cfg.Reconciler.WindowHours
	svc.reconcile = scheduler.NewScheduler(logger, scheduler.Task{
		Name:     "reconcile",
		Interval: time.Duration(cfg.Reconciler.IntervalMinutes) * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := reconciler.Reconcile(ctx, limit, window)
			if errors.Is(err, ErrReconcileInProgress) {
				logger.Info("Reconciliation running elsewhere, skipping this tick")
				return nil
			}
			return err
		},
	})

	if cfg.Reminders.Enabled && reminders != nil {
		svc.reminders = scheduler.NewScheduler(logger, scheduler.Task{
			Name:     "event-reminders",
			Interval: time.Duration(cfg.Reminders.IntervalHours) * time.Hour,
			Timeout:  30 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := reminders.SendEventReminders(ctx, time.Now())
				return err
			},
		})
	}

	return svc
}

func (s *schedulerService) Start() error {
	ctx := context.Background()
	if err := s.reconcile.Start(ctx); err != nil {
		return err
	}
	if s.reminders != nil {
		if err := s.reminders.Start(ctx); err != nil && !errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
			_ = s.reconcile.Stop()
			return fmt.Errorf("failed to start reminder scheduler: %w", err)
		}
	}
	return nil
}

func (s *schedulerService) Stop() error {
	if s.reminders != nil && s.reminders.IsRunning() {
		if err := s.reminders.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			s.logger.Warn("Failed to stop reminder scheduler", zap.Error(err))
		}
	}
	return s.reconcile.Stop()
}

// IsRunning reports the state of the reconcile scheduler.
func (s *schedulerService) IsRunning() bool {
	return s.reconcile.IsRunning()
}
