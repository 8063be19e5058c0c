package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_service.go -package=mocks

// DispatchService renders templates for recipients, sends them and keeps
// one log row per attempt.
type DispatchService interface {
	Dispatch(ctx context.Context, person *models.Person, tpl *models.MessageTemplate, event *models.Event) (*models.MessageLog, error)
	DispatchBulk(ctx context.Context, people []*models.Person, tpl *models.MessageTemplate, event *models.Event) (*BulkResult, error)
	SendOne(ctx context.Context, templateID int64, personID uuid.UUID, eventID *int64) (*models.MessageLog, error)
	SendTemplate(ctx context.Context, templateID int64, personIDs []uuid.UUID, eventID *int64) (*BulkResult, error)
}

type ReconcileService interface {
	// Reconcile refreshes the status of recent non-terminal logs from the
	// provider. Zero limit or windowHours use the configured defaults.
	Reconcile(ctx context.Context, limit, windowHours int) (*ReconcileResult, error)
}

type LogService interface {
	ListLogs(ctx context.Context, query LogQuery) (*LogPage, error)
	GetStats(ctx context.Context, now time.Time) (*models.LogStats, error)
	GetLog(ctx context.Context, id int64) (*models.MessageLog, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.MessageLog, error)
}

type TemplateService interface {
	CreateTemplate(ctx context.Context, input TemplateInput) (*models.MessageTemplate, error)
	UpdateTemplate(ctx context.Context, id int64, input TemplateInput) (*models.MessageTemplate, error)
	GetTemplate(ctx context.Context, id int64) (*models.MessageTemplate, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]*models.MessageTemplate, error)
}

type ReminderService interface {
	// SendEventReminders messages every reachable active person about the
	// active events dated the day after now.
	SendEventReminders(ctx context.Context, now time.Time) (*ReminderResult, error)
}

type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type HealthService interface {
	GetHealth(ctx context.Context) *HealthStatus
}
