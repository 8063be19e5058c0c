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

const templateColumns = `id, name, channel, subject, body, variables, is_active, created_at, updated_at`

type templateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, tpl *models.MessageTemplate) error {
	query := `
		INSERT INTO message_templates (name, channel, subject, body, variables, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, query,
		tpl.Name, tpl.Channel, tpl.Subject, tpl.Body, tpl.Variables, tpl.IsActive, now, now,
	).Scan(&tpl.ID)
	if err != nil {
		return fmt.Errorf("failed to create message template: %w", err)
	}

	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return nil
}

// Update overwrites every mutable column. Logs keep their rendered text, so
// edits never change history.
func (r *templateRepository) Update(ctx context.Context, tpl *models.MessageTemplate) error {
	query := `
		UPDATE message_templates
		SET name = $2, channel = $3, subject = $4, body = $5, variables = $6, is_active = $7, updated_at = $8
		WHERE id = $1
	`

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		tpl.ID, tpl.Name, tpl.Channel, tpl.Subject, tpl.Body, tpl.Variables, tpl.IsActive, now)
	if err != nil {
		return fmt.Errorf("failed to update message template: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	tpl.UpdatedAt = now
	return nil
}

func (r *templateRepository) GetByID(ctx context.Context, id int64) (*models.MessageTemplate, error) {
	var tpl models.MessageTemplate
	err := r.db.GetContext(ctx, &tpl, `SELECT `+templateColumns+` FROM message_templates WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message template: %w", err)
	}
	return &tpl, nil
}

func (r *templateRepository) GetActiveByName(ctx context.Context, name string) (*models.MessageTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM message_templates
		WHERE name = $1 AND is_active
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var tpl models.MessageTemplate
	if err := r.db.GetContext(ctx, &tpl, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message template by name: %w", err)
	}
	return &tpl, nil
}

func (r *templateRepository) List(ctx context.Context, activeOnly bool) ([]*models.MessageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM message_templates`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var templates []*models.MessageTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("failed to list message templates: %w", err)
	}
	return templates, nil
}
