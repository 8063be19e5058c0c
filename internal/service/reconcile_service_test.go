package service_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/provider"
	"github.com/popeskul/gathering-dispatch/internal/service"
)

func reconcilableLog(id int64, status models.MessageStatus) *models.MessageLog {
	return &models.MessageLog{
		ID:         id,
		Channel:    models.ChannelSMS,
		Status:     status,
		ExternalID: sql.NullString{String: "ext-" + string(rune('a'+id)), Valid: true},
	}
}

func newReconcile(d *testDeps) service.ReconcileService {
	return service.NewReconcileService(testConfig(), d.repo, d.sms, d.store, zap.NewNop())
}

func TestReconcileService_Reconcile(t *testing.T) {
	d := newTestDeps(t)

	logs := []*models.MessageLog{
		reconcilableLog(1, models.MessageStatusPending),
		reconcilableLog(2, models.MessageStatusSent),
		reconcilableLog(3, models.MessageStatusSent),
		reconcilableLog(4, models.MessageStatusSent),
		reconcilableLog(5, models.MessageStatusSent),
		reconcilableLog(6, models.MessageStatusSent),
		reconcilableLog(7, models.MessageStatusSent),
	}
	reported := map[string]string{
		logs[0].ExternalID.String: provider.StatusSent,
		logs[1].ExternalID.String: provider.StatusRead,
		logs[2].ExternalID.String: provider.StatusSent,
		logs[3].ExternalID.String: provider.StatusPending,
		logs[5].ExternalID.String: provider.StatusUnknown,
		logs[6].ExternalID.String: provider.StatusFailed,
	}

	d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), 50).Return(logs, nil)
	d.sms.EXPECT().CheckStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, externalID string) (*provider.StatusResult, error) {
			status, ok := reported[externalID]
			if !ok {
				return nil, &provider.Error{Kind: provider.ErrTransport, Message: "timeout"}
			}
			return &provider.StatusResult{Status: status}, nil
		}).Times(len(logs))

	d.logs.EXPECT().TransitionStatus(gomock.Any(), int64(1), models.MessageStatusPending, models.MessageStatusSent).Return(true, nil)
	d.logs.EXPECT().TransitionStatus(gomock.Any(), int64(2), models.MessageStatusSent, models.MessageStatusDelivered).Return(true, nil)
	d.logs.EXPECT().TransitionStatus(gomock.Any(), int64(7), models.MessageStatusSent, models.MessageStatusFailed).Return(true, nil)

	result, err := newReconcile(d).Reconcile(context.Background(), 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 7, result.Checked)
	assert.Equal(t, 3, result.Updated)
	assert.False(t, d.redis.Exists("lock:reconcile"), "lock must be released")
}

func TestReconcileService_Reconcile_Window(t *testing.T) {
	d := newTestDeps(t)

	before := time.Now()
	d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), 5).DoAndReturn(
		func(_ context.Context, since time.Time, _ int) ([]*models.MessageLog, error) {
			assert.WithinDuration(t, before.Add(-2*time.Hour), since, time.Minute)
			return nil, nil
		})

	result, err := newReconcile(d).Reconcile(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, &service.ReconcileResult{}, result)
}

func TestReconcileService_Reconcile_ConcurrentWriter(t *testing.T) {
	d := newTestDeps(t)

	d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]*models.MessageLog{reconcilableLog(1, models.MessageStatusSent)}, nil)
	d.sms.EXPECT().CheckStatus(gomock.Any(), gomock.Any()).Return(&provider.StatusResult{Status: provider.StatusDelivered}, nil)
	d.logs.EXPECT().TransitionStatus(gomock.Any(), int64(1), models.MessageStatusSent, models.MessageStatusDelivered).Return(false, nil)

	result, err := newReconcile(d).Reconcile(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Checked)
	assert.Zero(t, result.Updated)
}

func TestReconcileService_Reconcile_Failure(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T, d *testDeps) service.ReconcileService
		expectedError error
	}{
		{
			name: "lock held by another process",
			setup: func(t *testing.T, d *testDeps) service.ReconcileService {
				require.NoError(t, d.redis.Set("lock:reconcile", "other"))
				return newReconcile(d)
			},
			expectedError: service.ErrReconcileInProgress,
		},
		{
			name: "no sms transport",
			setup: func(t *testing.T, d *testDeps) service.ReconcileService {
				return service.NewReconcileService(testConfig(), d.repo, nil, d.store, zap.NewNop())
			},
			expectedError: service.ErrChannelNotConfigured,
		},
		{
			name: "list fails",
			setup: func(t *testing.T, d *testDeps) service.ReconcileService {
				d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
				return newReconcile(d)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			svc := tt.setup(t, d)

			result, err := svc.Reconcile(context.Background(), 0, 0)
			require.Error(t, err)
			assert.Nil(t, result)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			}
		})
	}
}

func TestReconcileService_Reconcile_RedisDown(t *testing.T) {
	d := newTestDeps(t)
	d.redis.Close()

	d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	result, err := newReconcile(d).Reconcile(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Zero(t, result.Checked)
}

func TestReconcileService_Reconcile_SharesPassInProcess(t *testing.T) {
	d := newTestDeps(t)

	started := make(chan struct{})
	release := make(chan struct{})
	d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, time.Time, int) ([]*models.MessageLog, error) {
			close(started)
			<-release
			return nil, nil
		}).Times(1)

	svc := newReconcile(d)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.Reconcile(context.Background(), 0, 0)
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = svc.Reconcile(context.Background(), 0, 0)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestReconcileService_Reconcile_StarterCancelled(t *testing.T) {
	d := newTestDeps(t)

	started := make(chan struct{})
	release := make(chan struct{})
	logs := []*models.MessageLog{
		reconcilableLog(1, models.MessageStatusSent),
		reconcilableLog(2, models.MessageStatusSent),
	}
	d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ time.Time, _ int) ([]*models.MessageLog, error) {
			close(started)
			<-release
			assert.NoError(t, ctx.Err())
			return logs, nil
		}).Times(1)
	d.sms.EXPECT().CheckStatus(gomock.Any(), gomock.Any()).
		Return(&provider.StatusResult{Status: provider.StatusDelivered}, nil).Times(2)
	d.logs.EXPECT().TransitionStatus(gomock.Any(), gomock.Any(), models.MessageStatusSent, models.MessageStatusDelivered).
		Return(true, nil).Times(2)

	svc := newReconcile(d)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Reconcile(ctx, 0, 0)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		result *service.ReconcileResult
		err    error
	}
	joined := make(chan outcome, 1)
	go func() {
		res, err := svc.Reconcile(context.Background(), 0, 0)
		joined <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-joined
	require.NoError(t, got.err)
	assert.Equal(t, 2, got.result.Checked)
	assert.Equal(t, 2, got.result.Updated)
}

func TestReconcileService_Reconcile_DifferentParametersNotShared(t *testing.T) {
	d := newTestDeps(t)

	started := make(chan struct{})
	release := make(chan struct{})
	d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), 50).DoAndReturn(
		func(context.Context, time.Time, int) ([]*models.MessageLog, error) {
			close(started)
			<-release
			return nil, nil
		}).Times(1)

	svc := newReconcile(d)

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Reconcile(context.Background(), 0, 0)
		firstErr <- err
	}()
	<-started

	result, err := svc.Reconcile(context.Background(), 10, 6)
	assert.ErrorIs(t, err, service.ErrReconcileInProgress)
	assert.Nil(t, result)

	close(release)
	assert.NoError(t, <-firstErr)
}

func TestReconcileService_Reconcile_PassTimeout(t *testing.T) {
	d := newTestDeps(t)
	cfg := testConfig()
	cfg.Reconciler.LockTTL = 1

	d.logs.EXPECT().ListReconcilable(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]*models.MessageLog{reconcilableLog(1, models.MessageStatusSent)}, nil)
	d.sms.EXPECT().CheckStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string) (*provider.StatusResult, error) {
			<-ctx.Done()
			return nil, &provider.Error{Kind: provider.ErrTransport, Message: ctx.Err().Error()}
		})

	svc := service.NewReconcileService(cfg, d.repo, d.sms, d.store, zap.NewNop())

	result, err := svc.Reconcile(context.Background(), 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "interrupted after 1 of 1 checks")
}
