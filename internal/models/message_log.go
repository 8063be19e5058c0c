// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen from s.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusDelivered || s == MessageStatusFailed
}

func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusPending, MessageStatusSent, MessageStatusDelivered, MessageStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether the log state machine allows moving from s to next.
//
//	pending -> sent | delivered | failed
//	sent    -> delivered | failed
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	switch s {
	case MessageStatusPending:
		return next == MessageStatusSent || next == MessageStatusDelivered || next == MessageStatusFailed
	case MessageStatusSent:
		return next == MessageStatusDelivered || next == MessageStatusFailed
	default:
		return false
	}
}

// MessageLog is the audit record of a single dispatch attempt.
// Subject and Body hold the rendered text, never a template reference.
type MessageLog struct {
	ID           int64          `db:"id"`
	PersonID     uuid.UUID      `db:"person_id"`
	EventID      sql.NullInt64  `db:"event_id"`
	TemplateID   sql.NullInt64  `db:"template_id"`
	Channel      Channel        `db:"channel"`
	Recipient    string         `db:"recipient"`
	Subject      sql.NullString `db:"subject"`
	Body         string         `db:"body"`
	Status       MessageStatus  `db:"status"`
	ExternalID   sql.NullString `db:"external_id"`
	ErrorMessage sql.NullString `db:"error_message"`
	Cost         float64        `db:"cost"`
	Currency     sql.NullString `db:"currency"`
	CreatedAt    time.Time      `db:"created_at"`
	SentAt       sql.NullTime   `db:"sent_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// LogStats summarizes the log table for the operator dashboard.
type LogStats struct {
	Total     int64 `db:"total" json:"total"`
	Pending   int64 `db:"pending" json:"pending"`
	Sent      int64 `db:"sent" json:"sent"`
	Delivered int64 `db:"delivered" json:"delivered"`
	Failed    int64 `db:"failed" json:"failed"`

	RecentTotal   int64 `db:"recent_total" json:"recent_total"`
	RecentSent    int64 `db:"recent_sent" json:"recent_sent"`
	RecentFailed  int64 `db:"recent_failed" json:"recent_failed"`
	RecentPending int64 `db:"recent_pending" json:"recent_pending"`
}
