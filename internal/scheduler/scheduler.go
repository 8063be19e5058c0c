package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means Interval.
	Timeout time.Duration
	Run     func(context.Context) error
}

// Scheduler runs one Task immediately on Start and then every Interval
// until stopped or until the start context is cancelled.
type Scheduler struct {
	logger    *zap.Logger
	task      Task
	cancel    context.CancelFunc
	doneCh    chan struct{}
	isRunning bool
	mu        sync.RWMutex
}

func NewScheduler(logger *zap.Logger, task Task) *Scheduler {
	if task.Timeout <= 0 {
		task.Timeout = task.Interval
	}
	return &Scheduler{
		logger: logger.With(zap.String("task", task.Name)),
		task:   task,
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSchedulerAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.isRunning = true
	s.cancel = cancel
	s.doneCh = make(chan struct{})

	go s.run(runCtx, s.doneCh)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.task.Interval))
	return nil
}

// Stop cancels any in-flight run and waits for the loop to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	cancel, done := s.cancel, s.doneCh
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	s.executeTask(ctx)

	ticker := time.NewTicker(s.task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context canceled")
			return
		case <-ticker.C:
			s.executeTask(ctx)
		}
	}
}

func (s *Scheduler) executeTask(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.logger.Debug("Executing scheduled task")
	started := time.Now()

	taskCtx, cancel := context.WithTimeout(ctx, s.task.Timeout)
	defer cancel()

	if err := s.task.Run(taskCtx); err != nil {
		s.logger.Error("Task execution failed", zap.Error(err), zap.Duration("duration", time.Since(started)))
		return
	}
	s.logger.Debug("Task execution completed", zap.Duration("duration", time.Since(started)))
}
