package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

// event_time is read back as text so it renders the way it was stored.
const eventColumns = `id, name, topic, event_date, event_time::text AS event_time, location, is_active`

type eventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	var e models.Event
	if err := r.db.GetContext(ctx, &e, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// ListActiveOn returns active events whose calendar date equals date's.
func (r *eventRepository) ListActiveOn(ctx context.Context, date time.Time) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE event_date = $1::date AND is_active
		ORDER BY event_time, id
	`

	var events []*models.Event
	if err := r.db.SelectContext(ctx, &events, query, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
