package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_repository.go -package=mocks

var (
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict means the row exists but is no longer in the status
	// the update expected.
	ErrStatusConflict = errors.New("message log status changed concurrently")
)

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping(ctx context.Context) error

	MessageLog() MessageLogRepository
	Template() TemplateRepository
	Person() PersonRepository
	Event() EventRepository
}

// LogFilter narrows log listings. Zero values match everything.
type LogFilter struct {
	Status  models.MessageStatus
	Channel models.Channel
	Offset  int
	Limit   int
}

// MessageLogRepository persists dispatch attempts. Rows are never deleted.
type MessageLogRepository interface {
	// Create inserts log as pending and fills its ID and timestamps.
	Create(ctx context.Context, log *models.MessageLog) error
	MarkSent(ctx context.Context, id int64, externalID string, cost float64, currency string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	// TransitionStatus moves id from one status to another and reports
	// whether the row was still in from.
	TransitionStatus(ctx context.Context, id int64, from, to models.MessageStatus) (bool, error)
	ListReconcilable(ctx context.Context, since time.Time, limit int) ([]*models.MessageLog, error)
	List(ctx context.Context, filter LogFilter) ([]*models.MessageLog, error)
	Count(ctx context.Context, filter LogFilter) (int64, error)
	Stats(ctx context.Context, recentSince time.Time) (*models.LogStats, error)
	GetByID(ctx context.Context, id int64) (*models.MessageLog, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.MessageLog, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, tpl *models.MessageTemplate) error
	Update(ctx context.Context, tpl *models.MessageTemplate) error
	GetByID(ctx context.Context, id int64) (*models.MessageTemplate, error)
	// GetActiveByName returns the newest active template with name.
	GetActiveByName(ctx context.Context, name string) (*models.MessageTemplate, error)
	List(ctx context.Context, activeOnly bool) ([]*models.MessageTemplate, error)
}

// PersonRepository reads attendee records owned by the registration screens.
type PersonRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Person, error)
	ListActive(ctx context.Context) ([]*models.Person, error)
}

type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	ListActiveOn(ctx context.Context, date time.Time) ([]*models.Event, error)
}
