package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

const personColumns = `id, first_name, last_name, phone_number, email, notification_preference, is_active`

type personRepository struct {
	db *sqlx.DB
}

func NewPersonRepository(db *sqlx.DB) PersonRepository {
	return &personRepository{db: db}
}

func (r *personRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	var p models.Person
	if err := r.db.GetContext(ctx, &p, `SELECT `+personColumns+` FROM people WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return &p, nil
}

// GetByIDs returns the people that exist among ids; unknown ids are ignored.
func (r *personRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `SELECT ` + personColumns + ` FROM people WHERE id = ANY($1::uuid[]) ORDER BY last_name, first_name`

	var people []*models.Person
	if err := r.db.SelectContext(ctx, &people, query, pq.Array(raw)); err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}
	return people, nil
}

func (r *personRepository) ListActive(ctx context.Context) ([]*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE is_active ORDER BY last_name, first_name`

	var people []*models.Person
	if err := r.db.SelectContext(ctx, &people, query); err != nil {
		return nil, fmt.Errorf("failed to list active people: %w", err)
	}
	return people, nil
}
