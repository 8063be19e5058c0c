package repository_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

type testPerson struct {
	first    string
	last     string
	phone    string
	email    string
	pref     models.NotificationPreference
	inactive bool
}

func insertTestPerson(t *testing.T, db *sqlx.DB, p testPerson) uuid.UUID {
	t.Helper()
	if p.pref == "" {
		p.pref = models.PreferenceWhatsApp
	}

	var id uuid.UUID
	err := db.QueryRow(`
		INSERT INTO people (first_name, last_name, phone_number, email, notification_preference, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.first, p.last, p.phone, sql.NullString{String: p.email, Valid: p.email != ""}, p.pref, !p.inactive,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertTestEvent(t *testing.T, db *sqlx.DB, name string, date time.Time, at, location string, active bool) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(`
		INSERT INTO events (name, topic, event_date, event_time, location, is_active)
		VALUES ($1, $2, $3::date, $4::time, $5, $6)
		RETURNING id`,
		name, "Grace", date.Format("2006-01-02"), at, location, active,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

type testLog struct {
	personID   uuid.UUID
	channel    models.Channel
	status     models.MessageStatus
	externalID string
	createdAt  time.Time
}

func insertTestLog(t *testing.T, db *sqlx.DB, l testLog) int64 {
	t.Helper()
	if l.channel == "" {
		l.channel = models.ChannelSMS
	}
	if l.status == "" {
		l.status = models.MessageStatusPending
	}
	if l.createdAt.IsZero() {
		l.createdAt = time.Now()
	}

	var id int64
	err := db.QueryRow(`
		INSERT INTO message_logs (person_id, channel, recipient, body, status, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		l.personID, l.channel, "+233244000000", "body", l.status,
		sql.NullString{String: l.externalID, Valid: l.externalID != ""}, l.createdAt,
	).Scan(&id)
	require.NoError(t, err)
	return id
}
