package service

import (
	"errors"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

var (
	// ErrMissingRecipientAddress means the person has no address for the
	// template channel. No log row is written.
	ErrMissingRecipientAddress = errors.New("recipient has no address for channel")
	// ErrChannelNotConfigured means no transport is configured for the
	// template channel. No log row is written.
	ErrChannelNotConfigured = errors.New("no transport configured for channel")
	ErrReconcileInProgress  = errors.New("reconciliation already in progress")
	ErrTemplateInactive     = errors.New("template is inactive")
	ErrInvalidInput         = errors.New("invalid input")
)

// BulkResult aggregates a bulk dispatch. Attempted is Succeeded + Failed;
// Skipped recipients had no address for the channel and got no log row.
type BulkResult struct {
	Attempted int                  `json:"attempted"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"skipped"`
	Logs      []*models.MessageLog `json:"-"`
}

func (r *BulkResult) add(o *BulkResult) {
	r.Attempted += o.Attempted
	r.Succeeded += o.Succeeded
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	r.Logs = append(r.Logs, o.Logs...)
}

type ReconcileResult struct {
	Updated int `json:"updated"`
	Checked int `json:"checked"`
}

type ReminderResult struct {
	Events int `json:"events"`
	BulkResult
}

type LogQuery struct {
	Status  models.MessageStatus
	Channel models.Channel
	Page    int
	Limit   int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	// MaxPage keeps (page-1)*limit far from int overflow.
	MaxPage = 1_000_000
)

type Pagination struct {
	CurrentPage  int   `json:"current_page"`
	TotalPages   int   `json:"total_pages"`
	TotalItems   int64 `json:"total_items"`
	ItemsPerPage int   `json:"items_per_page"`
}

type LogPage struct {
	Logs       []*models.MessageLog
	Pagination Pagination
}

// TemplateInput carries template fields from the API. Nil pointers leave
// the stored value unchanged on update.
type TemplateInput struct {
	Name      *string
	Channel   *models.Channel
	Subject   *string
	Body      *string
	Variables *string
	IsActive  *bool
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"

	SchedulerRunning = "running"
	SchedulerStopped = "stopped"

	Connected    = "connected"
	Disconnected = "disconnected"
)

type HealthStatus struct {
	Status               string `json:"status"`
	SchedulerStatus      string `json:"scheduler_status"`
	DatabaseStatus       string `json:"database_status"`
	RedisStatus          string `json:"redis_status"`
	Provider             string `json:"provider,omitempty"`
	CircuitBreakerStatus string `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  string `json:"circuit_breaker_state,omitempty"`
}
