package service

import (
	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/cache"
	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/email"
	"github.com/popeskul/gathering-dispatch/internal/provider"
	"github.com/popeskul/gathering-dispatch/internal/repository"
)

type Service struct {
	Dispatch  DispatchService
	Reconcile ReconcileService
	Logs      LogService
	Templates TemplateService
	Reminders ReminderService
	Scheduler SchedulerService
	Health    HealthService
}

// NewService wires the services. sms and mail are the transports chosen at
// startup; either may be nil when its channel is not configured. A nil
// store disables the message index and the cross-process reconcile lock.
func NewService(
	cfg *config.Config,
	repo repository.Repository,
	store *cache.Store,
	sms provider.Sender,
	mail email.Sender,
	logger *zap.Logger,
) *Service {
	var (
		index  MessageIndex
		locker Locker
		redis  Pinger
	)
	if store != nil {
		index, locker, redis = store, store, store
	}

	dispatchService := NewDispatchService(cfg, repo, sms, mail, index, logger)
	reconcileService := NewReconcileService(cfg, repo, sms, locker, logger)
	reminderService := NewReminderService(repo, dispatchService, cfg.Reminders.TemplateName, logger)
	schedulerService := NewSchedulerService(cfg, reconcileService, reminderService, logger)

	var (
		breaker      BreakerStatus
		providerName string
	)
	if sms != nil {
		providerName = sms.Name()
		if b, ok := sms.(BreakerStatus); ok {
			breaker = b
		}
	}

	return &Service{
		Dispatch:  dispatchService,
		Reconcile: reconcileService,
		Logs:      NewLogService(repo, index, logger),
		Templates: NewTemplateService(repo, logger),
		Reminders: reminderService,
		Scheduler: schedulerService,
		Health:    NewHealthService(repo, redis, schedulerService, breaker, providerName),
	}
}
