package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/email"
	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/provider"
	"github.com/popeskul/gathering-dispatch/internal/renderer"
	"github.com/popeskul/gathering-dispatch/internal/repository"
)

type dispatchService struct {
	repo           repository.Repository
	sms            provider.Sender
	mail           email.Sender
	index          MessageIndex
	senderID       string
	workers        int
	persistTimeout time.Duration
	logger         *zap.Logger
}

// NewDispatchService builds the orchestrator. sms or mail may be nil when
// the channel has no transport; dispatching on such a channel fails with
// ErrChannelNotConfigured.
func NewDispatchService(
	cfg *config.Config,
	repo repository.Repository,
	sms provider.Sender,
	mail email.Sender,
	index MessageIndex,
	logger *zap.Logger,
) DispatchService {
	persistTimeout := time.Duration(cfg.Dispatch.PersistTimeout) * time.Second
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	workers := cfg.Dispatch.Workers
	if workers <= 0 {
		workers = 1
	}

	return &dispatchService{
		repo:           repo,
		sms:            sms,
		mail:           mail,
		index:          index,
		senderID:       cfg.Provider.SenderID,
		workers:        workers,
		persistTimeout: persistTimeout,
		logger:         logger,
	}
}

func (s *dispatchService) Dispatch(ctx context.Context, person *models.Person, tpl *models.MessageTemplate, event *models.Event) (*models.MessageLog, error) {
	if person == nil || tpl == nil {
		return nil, fmt.Errorf("%w: person and template are required", ErrInvalidInput)
	}
	if err := s.checkTransport(tpl.Channel); err != nil {
		return nil, err
	}

	address := person.Address(tpl.Channel)
	if address == "" {
		return nil, fmt.Errorf("%w: person %s has no %s address", ErrMissingRecipientAddress, person.ID, tpl.Channel)
	}

	log := &models.MessageLog{
		PersonID:   person.ID,
		TemplateID: sql.NullInt64{Int64: tpl.ID, Valid: tpl.ID != 0},
		Channel:    tpl.Channel,
		Recipient:  address,
		Body:       renderer.Render(tpl.Body, person, event),
	}
	if event != nil {
		log.EventID = sql.NullInt64{Int64: event.ID, Valid: true}
	}
	if tpl.Channel == models.ChannelEmail && tpl.Subject.Valid {
		log.Subject = sql.NullString{String: renderer.Render(tpl.Subject.String, person, event), Valid: true}
	}

	if err := s.repo.MessageLog().Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to create message log: %w", err)
	}

	s.deliver(ctx, log)
	return log, nil
}

func (s *dispatchService) checkTransport(ch models.Channel) error {
	switch {
	case !ch.Valid():
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, ch)
	case ch == models.ChannelEmail && s.mail == nil:
		return fmt.Errorf("%w: %s", ErrChannelNotConfigured, ch)
	case ch.UsesPhone() && s.sms == nil:
		return fmt.Errorf("%w: %s", ErrChannelNotConfigured, ch)
	}
	return nil
}

// deliver sends log and records the outcome. It never returns an error:
// every result, including a panic in a transport, ends up on the row.
func (s *dispatchService) deliver(ctx context.Context, log *models.MessageLog) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while dispatching message",
				zap.Int64("logID", log.ID),
				zap.Any("panic", r))
			s.recordFailure(ctx, log, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	if log.Channel == models.ChannelEmail {
		if err := s.mail.Send(ctx, log.Recipient, log.Subject.String, log.Body); err != nil {
			s.recordFailure(ctx, log, err.Error())
			return
		}
		s.recordSent(ctx, log, "", 0, "")
		return
	}

	res, err := s.sms.Send(ctx, provider.SendRequest{
		To:       log.Recipient,
		Body:     log.Body,
		SenderID: s.senderID,
		Channel:  log.Channel,
	})
	if err != nil {
		s.recordFailure(ctx, log, err.Error())
		return
	}
	s.recordSent(ctx, log, res.MessageID, res.Cost, res.Currency)

	if res.MessageID != "" && s.index != nil {
		if err := s.index.PutMessage(ctx, res.MessageID, log.ID); err != nil {
			s.logger.Warn("Failed to cache message ID in Redis",
				zap.String("externalID", res.MessageID),
				zap.Error(err))
		}
	}
}

// persistContext outlives the caller so a cancelled batch still records
// the result of a send that already happened.
func (s *dispatchService) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
}

func (s *dispatchService) recordSent(ctx context.Context, log *models.MessageLog, externalID string, cost float64, currency string) {
	sentAt := time.Now().UTC()
	log.Status = models.MessageStatusSent
	log.SentAt = sql.NullTime{Time: sentAt, Valid: true}
	log.ExternalID = sql.NullString{String: externalID, Valid: externalID != ""}
	log.Cost = cost
	log.Currency = sql.NullString{String: currency, Valid: currency != ""}
	log.ErrorMessage = sql.NullString{}

	pctx, cancel := s.persistContext(ctx)
	defer cancel()

	if err := s.repo.MessageLog().MarkSent(pctx, log.ID, externalID, cost, currency, sentAt); err != nil {
		s.logger.Error("Failed to record sent message",
			zap.Int64("logID", log.ID),
			zap.String("externalID", externalID),
			zap.Error(err))
		return
	}

	s.logger.Info("Message sent successfully",
		zap.Int64("logID", log.ID),
		zap.String("channel", string(log.Channel)),
		zap.String("externalID", externalID))
}

func (s *dispatchService) recordFailure(ctx context.Context, log *models.MessageLog, reason string) {
	reason = strings.ToValidUTF8(reason, "\uFFFD")
	log.Status = models.MessageStatusFailed
	log.ErrorMessage = sql.NullString{String: reason, Valid: true}

	pctx, cancel := s.persistContext(ctx)
	defer cancel()

	if err := s.repo.MessageLog().MarkFailed(pctx, log.ID, reason); err != nil {
		s.logger.Error("Failed to record failed message",
			zap.Int64("logID", log.ID),
			zap.Error(err))
		return
	}

	s.logger.Warn("Message dispatch failed",
		zap.Int64("logID", log.ID),
		zap.String("channel", string(log.Channel)),
		zap.String("error", reason))
}

func (s *dispatchService) DispatchBulk(ctx context.Context, people []*models.Person, tpl *models.MessageTemplate, event *models.Event) (*BulkResult, error) {
	if tpl == nil {
		return nil, fmt.Errorf("%w: template is required", ErrInvalidInput)
	}
	if err := s.checkTransport(tpl.Channel); err != nil {
		return nil, err
	}

	result := &BulkResult{}
	logs := make([]*models.MessageLog, len(people))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, person := range people {
		if ctx.Err() != nil {
			break
		}
		if person == nil || person.Address(tpl.Channel) == "" {
			result.Skipped++
			continue
		}

		g.Go(func() error {
			log, err := s.Dispatch(ctx, person, tpl, event)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("Failed to dispatch message",
					zap.String("personID", person.ID.String()),
					zap.Error(err))
				result.Attempted++
				result.Failed++
				return nil
			}

			logs[i] = log
			result.Attempted++
			if log.Status == models.MessageStatusSent {
				result.Succeeded++
			} else {
				result.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, log := range logs {
		if log != nil {
			result.Logs = append(result.Logs, log)
		}
	}

	s.logger.Info("Bulk dispatch finished",
		zap.String("channel", string(tpl.Channel)),
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("bulk dispatch interrupted: %w", err)
	}
	return result, nil
}

func (s *dispatchService) SendOne(ctx context.Context, templateID int64, personID uuid.UUID, eventID *int64) (*models.MessageLog, error) {
	tpl, event, err := s.loadContext(ctx, templateID, eventID)
	if err != nil {
		return nil, err
	}

	person, err := s.repo.Person().GetByID(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	return s.Dispatch(ctx, person, tpl, event)
}

func (s *dispatchService) SendTemplate(ctx context.Context, templateID int64, personIDs []uuid.UUID, eventID *int64) (*BulkResult, error) {
	if len(personIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidInput)
	}

	tpl, event, err := s.loadContext(ctx, templateID, eventID)
	if err != nil {
		return nil, err
	}

	people, err := s.repo.Person().GetByIDs(ctx, personIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}

	return s.DispatchBulk(ctx, people, tpl, event)
}

func (s *dispatchService) loadContext(ctx context.Context, templateID int64, eventID *int64) (*models.MessageTemplate, *models.Event, error) {
	tpl, err := s.repo.Template().GetByID(ctx, templateID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get template: %w", err)
	}
	if !tpl.IsActive {
		return nil, nil, fmt.Errorf("%w: %s", ErrTemplateInactive, tpl.Name)
	}

	if eventID == nil {
		return tpl, nil, nil
	}

	event, err := s.repo.Event().GetByID(ctx, *eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get event %d: %w", *eventID, err)
	}
	return tpl, event, nil
}
