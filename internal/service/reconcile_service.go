package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/provider"
	"github.com/popeskul/gathering-dispatch/internal/repository"
)

const (
	reconcileLockName  = "reconcile"
	defaultPassTimeout = 5 * time.Minute
)

// providerStatuses maps delivery states reported by the provider onto log
// statuses. Anything missing leaves the row as it is.
var providerStatuses = map[string]models.MessageStatus{
	provider.StatusPending:   models.MessageStatusPending,
	provider.StatusSent:      models.MessageStatusSent,
	provider.StatusDelivered: models.MessageStatusDelivered,
	provider.StatusFailed:    models.MessageStatusFailed,
	provider.StatusRead:      models.MessageStatusDelivered,
}

type reconcileService struct {
	repo           repository.Repository
	sms            provider.Sender
	locker         Locker
	cfg            config.ReconcilerConfig
	persistTimeout time.Duration
	group          singleflight.Group
	now            func() time.Time
	logger         *zap.Logger
}

func NewReconcileService(
	cfg *config.Config,
	repo repository.Repository,
	sms provider.Sender,
	locker Locker,
	logger *zap.Logger,
) ReconcileService {
	persistTimeout := time.Duration(cfg.Dispatch.PersistTimeout) * time.Second
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}

	return &reconcileService{
		repo:           repo,
		sms:            sms,
		locker:         locker,
		cfg:            cfg.Reconciler,
		persistTimeout: persistTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

// Reconcile runs at most one pass per process for the same limit and
// window; concurrent callers with equal parameters share the pass already in
// flight. Across processes, and between passes with different parameters,
// the Redis lock turns an overlapping pass into ErrReconcileInProgress.
//
// The pass itself is detached from the caller that started it and bounded
// by the lock TTL, so a cancelled caller returns ctx.Err() without cutting
// the pass short for the others.
func (s *reconcileService) Reconcile(ctx context.Context, limit, windowHours int) (*ReconcileResult, error) {
	if s.sms == nil {
		return nil, fmt.Errorf("%w: sms", ErrChannelNotConfigured)
	}
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	if windowHours <= 0 {
		windowHours = s.cfg.WindowHours
	}

	key := fmt.Sprintf("%s:%d:%d", reconcileLockName, limit, windowHours)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.passTimeout())
		defer cancel()
		return s.reconcileLocked(pctx, limit, windowHours)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.logger.Debug("Joined reconciliation already in progress",
				zap.Int("limit", limit),
				zap.Int("windowHours", windowHours))
		}
		res := *r.Val.(*ReconcileResult)
		return &res, nil
	}
}

func (s *reconcileService) passTimeout() time.Duration {
	if s.cfg.LockTTL > 0 {
		return time.Duration(s.cfg.LockTTL) * time.Second
	}
	return defaultPassTimeout
}

func (s *reconcileService) reconcileLocked(ctx context.Context, limit, windowHours int) (*ReconcileResult, error) {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, reconcileLockName, time.Duration(s.cfg.LockTTL)*time.Second)
		switch {
		case err != nil:
			s.logger.Warn("Reconcile lock unavailable, continuing without it", zap.Error(err))
		case !ok:
			return nil, ErrReconcileInProgress
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn("Failed to release reconcile lock", zap.Error(err))
				}
			}()
		}
	}

	return s.reconcile(ctx, limit, windowHours)
}

func (s *reconcileService) reconcile(ctx context.Context, limit, windowHours int) (*ReconcileResult, error) {
	since := s.now().Add(-time.Duration(windowHours) * time.Hour)

	logs, err := s.repo.MessageLog().ListReconcilable(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconcilable logs: %w", err)
	}

	var checked, updated atomic.Int64

	var g errgroup.Group
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, log := range logs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			checked.Add(1)
			if s.refresh(ctx, log) {
				updated.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &ReconcileResult{Updated: int(updated.Load()), Checked: int(checked.Load())}
	if err := ctx.Err(); err != nil {
		s.logger.Warn("Reconciliation interrupted",
			zap.Int("checked", result.Checked),
			zap.Int("updated", result.Updated),
			zap.Int("selected", len(logs)))
		return nil, fmt.Errorf("reconciliation interrupted after %d of %d checks: %w", result.Checked, len(logs), err)
	}
	s.logger.Info("Reconciliation finished",
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
		zap.Int("selected", len(logs)))

	return result, nil
}

// refresh queries the provider for one log and applies the mapped status.
// It reports whether the row changed.
func (s *reconcileService) refresh(ctx context.Context, log *models.MessageLog) bool {
	status, err := s.sms.CheckStatus(ctx, log.ExternalID.String)
	if err != nil {
		s.logger.Warn("Failed to check message status",
			zap.Int64("logID", log.ID),
			zap.String("externalID", log.ExternalID.String),
			zap.Error(err))
		return false
	}

	next, ok := providerStatuses[status.Status]
	if !ok || next == log.Status {
		return false
	}
	if !log.Status.CanTransition(next) {
		s.logger.Debug("Ignoring backward status transition",
			zap.Int64("logID", log.ID),
			zap.String("from", string(log.Status)),
			zap.String("to", string(next)))
		return false
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	changed, err := s.repo.MessageLog().TransitionStatus(pctx, log.ID, log.Status, next)
	if err != nil {
		s.logger.Error("Failed to update message status",
			zap.Int64("logID", log.ID),
			zap.Error(err))
		return false
	}
	if !changed {
		s.logger.Debug("Message status changed concurrently, skipped", zap.Int64("logID", log.ID))
		return false
	}

	s.logger.Info("Message status updated",
		zap.Int64("logID", log.ID),
		zap.String("from", string(log.Status)),
		zap.String("to", string(next)))
	return true
}
