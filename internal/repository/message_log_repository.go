package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

const messageLogColumns = `id, person_id, event_id, template_id, channel, recipient, subject, body,
		status, external_id, error_message, cost, currency, created_at, sent_at, updated_at`

type messageLogRepository struct {
	db *sqlx.DB
}

func NewMessageLogRepository(db *sqlx.DB) MessageLogRepository {
	return &messageLogRepository{
		db: db,
	}
}

// Create inserts a new pending log row.
func (r *messageLogRepository) Create(ctx context.Context, log *models.MessageLog) error {
	query := `
		INSERT INTO message_logs (person_id, event_id, template_id, channel, recipient, subject, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, query,
		log.PersonID, log.EventID, log.TemplateID, log.Channel, log.Recipient,
		log.Subject, log.Body, models.MessageStatusPending, now, now,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to create message log: %w", err)
	}

	log.Status = models.MessageStatusPending
	log.CreatedAt = now
	log.UpdatedAt = now
	return nil
}

// MarkSent records a successful initial send. Only pending rows are updated.
func (r *messageLogRepository) MarkSent(ctx context.Context, id int64, externalID string, cost float64, currency string, sentAt time.Time) error {
	query := `
		UPDATE message_logs
		SET status = $2,
		    external_id = $3,
		    cost = $4,
		    currency = $5,
		    sent_at = $6,
		    error_message = NULL,
		    updated_at = $7
		WHERE id = $1 AND status = $8
	`

	res, err := r.db.ExecContext(ctx, query, id, models.MessageStatusSent,
		nullString(externalID), cost, nullString(currency), sentAt.UTC(), time.Now().UTC(),
		models.MessageStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark message log sent: %w", err)
	}

	return r.checkUpdated(ctx, res, id)
}

// MarkFailed records a failed initial send. Only pending rows are updated.
func (r *messageLogRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE message_logs
		SET status = $2,
		    error_message = $3,
		    updated_at = $4
		WHERE id = $1 AND status = $5
	`

	res, err := r.db.ExecContext(ctx, query, id, models.MessageStatusFailed,
		errorMessage, time.Now().UTC(), models.MessageStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark message log failed: %w", err)
	}

	return r.checkUpdated(ctx, res, id)
}

func (r *messageLogRepository) TransitionStatus(ctx context.Context, id int64, from, to models.MessageStatus) (bool, error) {
	query := `
		UPDATE message_logs
		SET status = $3,
		    updated_at = $4
		WHERE id = $1 AND status = $2
	`

	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to transition message log status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ListReconcilable returns phone-channel logs created since the given time
// that carry an external id and have not reached a terminal status, newest
// first.
func (r *messageLogRepository) ListReconcilable(ctx context.Context, since time.Time, limit int) ([]*models.MessageLog, error) {
	query := `
		SELECT ` + messageLogColumns + `
		FROM message_logs
		WHERE external_id IS NOT NULL
		  AND external_id <> ''
		  AND status = ANY($1::text[])
		  AND channel = ANY($2::text[])
		  AND created_at >= $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	statuses := []string{string(models.MessageStatusPending), string(models.MessageStatusSent)}
	channels := []string{string(models.ChannelSMS), string(models.ChannelWhatsApp)}

	var logs []*models.MessageLog
	err := r.db.SelectContext(ctx, &logs, query, pq.Array(statuses), pq.Array(channels), since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconcilable message logs: %w", err)
	}

	return logs, nil
}

func (r *messageLogRepository) List(ctx context.Context, filter LogFilter) ([]*models.MessageLog, error) {
	where, args := filter.where()
	query := `SELECT ` + messageLogColumns + ` FROM message_logs` + where + ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var logs []*models.MessageLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list message logs: %w", err)
	}

	return logs, nil
}

func (r *messageLogRepository) Count(ctx context.Context, filter LogFilter) (int64, error) {
	where, args := filter.where()

	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM message_logs`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count message logs: %w", err)
	}

	return count, nil
}

// Stats counts logs per status overall and for rows created since recentSince.
func (r *messageLogRepository) Stats(ctx context.Context, recentSince time.Time) (*models.LogStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'delivered') AS delivered,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE created_at >= $1) AS recent_total,
			COUNT(*) FILTER (WHERE created_at >= $1 AND status = 'sent') AS recent_sent,
			COUNT(*) FILTER (WHERE created_at >= $1 AND status = 'failed') AS recent_failed,
			COUNT(*) FILTER (WHERE created_at >= $1 AND status = 'pending') AS recent_pending
		FROM message_logs
	`

	var stats models.LogStats
	if err := r.db.GetContext(ctx, &stats, query, recentSince.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get message log stats: %w", err)
	}

	return &stats, nil
}

func (r *messageLogRepository) GetByID(ctx context.Context, id int64) (*models.MessageLog, error) {
	query := `SELECT ` + messageLogColumns + ` FROM message_logs WHERE id = $1`

	var log models.MessageLog
	if err := r.db.GetContext(ctx, &log, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message log: %w", err)
	}

	return &log, nil
}

func (r *messageLogRepository) GetByExternalID(ctx context.Context, externalID string) (*models.MessageLog, error) {
	query := `
		SELECT ` + messageLogColumns + `
		FROM message_logs
		WHERE external_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var log models.MessageLog
	if err := r.db.GetContext(ctx, &log, query, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message log by external id: %w", err)
	}

	return &log, nil
}

// checkUpdated tells a missing row apart from one whose status moved on.
func (r *messageLogRepository) checkUpdated(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM message_logs WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check message log: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (f LogFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Channel != "" {
		args = append(args, f.Channel)
		clauses = append(clauses, fmt.Sprintf("channel = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
