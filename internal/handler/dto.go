package handler

import (
	"time"

	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/service"
)

type SchedulerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status               string    `json:"status"`
	Timestamp            time.Time `json:"timestamp"`
	SchedulerStatus      *string   `json:"scheduler_status,omitempty"`
	DatabaseStatus       *string   `json:"database_status,omitempty"`
	RedisStatus          *string   `json:"redis_status,omitempty"`
	Provider             *string   `json:"provider,omitempty"`
	CircuitBreakerStatus *string   `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  *string   `json:"circuit_breaker_state,omitempty"`
}

type TemplateRequest struct {
	Name      *string `json:"name"`
	Channel   *string `json:"channel"`
	Subject   *string `json:"subject"`
	Body      *string `json:"body"`
	Variables *string `json:"variables"`
	IsActive  *bool   `json:"is_active"`
}

func (t TemplateRequest) input() service.TemplateInput {
	in := service.TemplateInput{
		Name:      t.Name,
		Subject:   t.Subject,
		Body:      t.Body,
		Variables: t.Variables,
		IsActive:  t.IsActive,
	}
	if t.Channel != nil {
		ch := models.Channel(*t.Channel)
		in.Channel = &ch
	}
	return in
}

type TemplateResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Channel   string    `json:"channel"`
	Subject   *string   `json:"subject,omitempty"`
	Body      string    `json:"body"`
	Variables string    `json:"variables"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newTemplateResponse(tpl *models.MessageTemplate) TemplateResponse {
	resp := TemplateResponse{
		ID:        tpl.ID,
		Name:      tpl.Name,
		Channel:   string(tpl.Channel),
		Body:      tpl.Body,
		Variables: tpl.Variables,
		IsActive:  tpl.IsActive,
		CreatedAt: tpl.CreatedAt,
		UpdatedAt: tpl.UpdatedAt,
	}
	if tpl.Subject.Valid {
		resp.Subject = &tpl.Subject.String
	}
	return resp
}

type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

type SendRequest struct {
	TemplateID int64    `json:"template_id"`
	PersonIDs  []string `json:"person_ids"`
	EventID    *int64   `json:"event_id"`
}

type DispatchRequest struct {
	TemplateID int64  `json:"template_id"`
	PersonID   string `json:"person_id"`
	EventID    *int64 `json:"event_id"`
}

type MessageLogResponse struct {
	ID           int64      `json:"id"`
	PersonID     string     `json:"person_id"`
	EventID      *int64     `json:"event_id,omitempty"`
	TemplateID   *int64     `json:"template_id,omitempty"`
	Channel      string     `json:"channel"`
	Recipient    string     `json:"recipient"`
	Subject      *string    `json:"subject,omitempty"`
	Body         string     `json:"body"`
	Status       string     `json:"status"`
	ExternalID   *string    `json:"external_id,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	Cost         float64    `json:"cost"`
	Currency     *string    `json:"currency,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func newMessageLogResponse(log *models.MessageLog) MessageLogResponse {
	resp := MessageLogResponse{
		ID:        log.ID,
		PersonID:  log.PersonID.String(),
		Channel:   string(log.Channel),
		Recipient: log.Recipient,
		Body:      log.Body,
		Status:    string(log.Status),
		Cost:      log.Cost,
		CreatedAt: log.CreatedAt,
		UpdatedAt: log.UpdatedAt,
	}
	if log.EventID.Valid {
		resp.EventID = &log.EventID.Int64
	}
	if log.TemplateID.Valid {
		resp.TemplateID = &log.TemplateID.Int64
	}
	if log.Subject.Valid {
		resp.Subject = &log.Subject.String
	}
	if log.ExternalID.Valid {
		resp.ExternalID = &log.ExternalID.String
	}
	if log.ErrorMessage.Valid {
		resp.ErrorMessage = &log.ErrorMessage.String
	}
	if log.Currency.Valid {
		resp.Currency = &log.Currency.String
	}
	if log.SentAt.Valid {
		resp.SentAt = &log.SentAt.Time
	}
	return resp
}

func newMessageLogResponses(logs []*models.MessageLog) []MessageLogResponse {
	out := make([]MessageLogResponse, 0, len(logs))
	for _, log := range logs {
		out = append(out, newMessageLogResponse(log))
	}
	return out
}

type MessageListResponse struct {
	Messages   []MessageLogResponse `json:"messages"`
	Pagination service.Pagination   `json:"pagination"`
}

// BulkResponse reports a bulk send. Interrupted is set when the request
// deadline cut the batch short; the counts cover what was sent before.
type BulkResponse struct {
	Attempted   int                  `json:"attempted"`
	Succeeded   int                  `json:"succeeded"`
	Failed      int                  `json:"failed"`
	Skipped     int                  `json:"skipped"`
	Interrupted bool                 `json:"interrupted,omitempty"`
	Messages    []MessageLogResponse `json:"messages"`
}

func newBulkResponse(result *service.BulkResult) BulkResponse {
	return BulkResponse{
		Attempted: result.Attempted,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Messages:  newMessageLogResponses(result.Logs),
	}
}
