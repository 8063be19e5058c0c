package models

import (
	"database/sql"
	"time"
)

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelEmail:
		return true
	}
	return false
}

// UsesPhone reports whether the channel is addressed by phone number.
func (c Channel) UsesPhone() bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}

// MessageTemplate is a reusable message body with {placeholder} tokens.
type MessageTemplate struct {
	ID        int64          `db:"id"`
	Name      string         `db:"name"`
	Channel   Channel        `db:"channel"`
	Subject   sql.NullString `db:"subject"`
	Body      string         `db:"body"`
	Variables string         `db:"variables"`
	IsActive  bool           `db:"is_active"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}
