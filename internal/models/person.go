package models

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

type NotificationPreference string

const (
	PreferenceWhatsApp NotificationPreference = "whatsapp"
	PreferenceSMS      NotificationPreference = "sms"
	PreferenceBoth     NotificationPreference = "both"
	PreferenceNone     NotificationPreference = "none"
)

// Person is a registered attendee. Owned by the registration screens;
// messaging only reads it.
type Person struct {
	ID                     uuid.UUID              `db:"id"`
	FirstName              string                 `db:"first_name"`
	LastName               string                 `db:"last_name"`
	PhoneNumber            string                 `db:"phone_number"`
	Email                  sql.NullString         `db:"email"`
	NotificationPreference NotificationPreference `db:"notification_preference"`
	IsActive               bool                   `db:"is_active"`
}

func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Address returns the recipient address the channel needs, or "" when the
// person has none.
func (p *Person) Address(ch Channel) string {
	if ch == ChannelEmail {
		if p.Email.Valid {
			return strings.TrimSpace(p.Email.String)
		}
		return ""
	}
	return strings.TrimSpace(p.PhoneNumber)
}

// Event is a gathering; only used as a template substitution source.
type Event struct {
	ID       int64          `db:"id"`
	Name     string         `db:"name"`
	Topic    sql.NullString `db:"topic"`
	Date     time.Time      `db:"event_date"`
	Time     string         `db:"event_time"`
	Location sql.NullString `db:"location"`
	IsActive bool           `db:"is_active"`
}
