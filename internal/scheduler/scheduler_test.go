package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/scheduler"
)

func newScheduler(interval time.Duration, run func(context.Context) error) *scheduler.Scheduler {
	return scheduler.NewScheduler(zap.NewNop(), scheduler.Task{
		Name:     "test",
		Interval: interval,
		Run:      run,
	})
}

func noop(context.Context) error { return nil }

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name           string
		setupScheduler func(t *testing.T) *scheduler.Scheduler
		expectedError  error
	}{
		{
			name: "success",
			setupScheduler: func(t *testing.T) *scheduler.Scheduler {
				return newScheduler(100*time.Millisecond, noop)
			},
			expectedError: nil,
		},
		{
			name: "already running",
			setupScheduler: func(t *testing.T) *scheduler.Scheduler {
				s := newScheduler(100*time.Millisecond, noop)
				require.NoError(t, s.Start(context.Background()))
				return s
			},
			expectedError: scheduler.ErrSchedulerAlreadyRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.setupScheduler(t)
			defer func() {
				if s.IsRunning() {
					_ = s.Stop()
				}
			}()

			err := s.Start(context.Background())
			assert.Equal(t, tt.expectedError, err)
		})
	}
}

func TestScheduler_Stop(t *testing.T) {
	tests := []struct {
		name           string
		setupScheduler func(t *testing.T) *scheduler.Scheduler
		expectedError  error
	}{
		{
			name: "success",
			setupScheduler: func(t *testing.T) *scheduler.Scheduler {
				s := newScheduler(100*time.Millisecond, noop)
				require.NoError(t, s.Start(context.Background()))
				return s
			},
			expectedError: nil,
		},
		{
			name: "not running",
			setupScheduler: func(t *testing.T) *scheduler.Scheduler {
				return newScheduler(100*time.Millisecond, noop)
			},
			expectedError: scheduler.ErrSchedulerNotRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.setupScheduler(t)
			err := s.Stop()
			assert.Equal(t, tt.expectedError, err)
			assert.False(t, s.IsRunning())
		})
	}
}

func TestScheduler_Restart(t *testing.T) {
	var calls atomic.Int32
	s := newScheduler(time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())

	assert.Equal(t, int32(2), calls.Load(), "each start runs the task once immediately")
}

func TestScheduler_TaskExecution(t *testing.T) {
	tests := []struct {
		name         string
		taskFunc     func(context.Context) error
		interval     time.Duration
		testDuration time.Duration
		minCalls     int32
		maxCalls     int32
	}{
		{
			name:         "task executes multiple times",
			taskFunc:     noop,
			interval:     50 * time.Millisecond,
			testDuration: 260 * time.Millisecond,
			minCalls:     3,
			maxCalls:     7,
		},
		{
			name: "task errors do not stop the loop",
			taskFunc: func(ctx context.Context) error {
				return errors.New("task error")
			},
			interval:     50 * time.Millisecond,
			testDuration: 160 * time.Millisecond,
			minCalls:     2,
			maxCalls:     5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			s := newScheduler(tt.interval, func(ctx context.Context) error {
				calls.Add(1)
				return tt.taskFunc(ctx)
			})

			require.NoError(t, s.Start(context.Background()))
			time.Sleep(tt.testDuration)
			require.NoError(t, s.Stop())

			assert.GreaterOrEqual(t, calls.Load(), tt.minCalls)
			assert.LessOrEqual(t, calls.Load(), tt.maxCalls)
		})
	}
}

func TestScheduler_RunTimeout(t *testing.T) {
	deadlines := make(chan time.Duration, 1)
	s := scheduler.NewScheduler(zap.NewNop(), scheduler.Task{
		Name:     "timeout",
		Interval: time.Hour,
		Timeout:  50 * time.Millisecond,
		Run: func(ctx context.Context) error {
			deadline, ok := ctx.Deadline()
			if !ok {
				deadlines <- -1
				return nil
			}
			deadlines <- time.Until(deadline)
			<-ctx.Done()
			return ctx.Err()
		},
	})

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	select {
	case remaining := <-deadlines:
		assert.Greater(t, remaining, time.Duration(0))
		assert.LessOrEqual(t, remaining, 50*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestScheduler_StopCancelsInFlightRun(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool
	s := newScheduler(time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})

	require.NoError(t, s.Start(context.Background()))
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a running task")
	}
	assert.True(t, cancelled.Load())
}

func TestScheduler_ContextCancellation(t *testing.T) {
	var mu sync.Mutex
	taskCalls := 0
	ctx, cancel := context.WithCancel(context.Background())
	s := newScheduler(50*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		taskCalls++
		mu.Unlock()
		return nil
	})

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())

	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	callsBeforeCancel := taskCalls
	mu.Unlock()
	assert.GreaterOrEqual(t, callsBeforeCancel, 2)

	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)

	mu.Lock()
	finalCalls := taskCalls
	mu.Unlock()
	assert.LessOrEqual(t, finalCalls-callsBeforeCancel, 1)

	assert.Equal(t, scheduler.ErrSchedulerNotRunning, s.Stop())
}

func TestScheduler_ConcurrentAccess(t *testing.T) {
	s := newScheduler(50*time.Millisecond, noop)

	var wg sync.WaitGroup
	errs := make(chan error, 5)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Start(context.Background()); err != nil && !errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
				errs <- err
			}
		}()
	}
	wg.Wait()

	assert.True(t, s.IsRunning())
	assert.Len(t, errs, 0)
	assert.NoError(t, s.Stop())
}
