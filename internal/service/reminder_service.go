package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/repository"
)

type reminderService struct {
	repo         repository.Repository
	dispatch     DispatchService
	templateName string
	logger       *zap.Logger
}

func NewReminderService(repo repository.Repository, dispatch DispatchService, templateName string, logger *zap.Logger) ReminderService {
	return &reminderService{
		repo:         repo,
		dispatch:     dispatch,
		templateName: templateName,
		logger:       logger,
	}
}

func (s *reminderService) SendEventReminders(ctx context.Context, now time.Time) (*ReminderResult, error) {
	result := &ReminderResult{}

	y, m, d := now.Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())

	events, err := s.repo.Event().ListActiveOn(ctx, tomorrow)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if len(events) == 0 {
		s.logger.Info("No events tomorrow, no reminders to send", zap.Time("date", tomorrow))
		return result, nil
	}

	tpl, err := s.repo.Template().GetActiveByName(ctx, s.templateName)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Reminder template not found", zap.String("template", s.templateName))
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder template: %w", err)
	}

	people, err := s.repo.Person().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}

	recipients := make([]*models.Person, 0, len(people))
	for _, p := range people {
		if p.NotificationPreference != models.PreferenceNone {
			recipients = append(recipients, p)
		}
	}

	for _, event := range events {
		bulk, err := s.dispatch.DispatchBulk(ctx, recipients, tpl, event)
		if bulk != nil {
			result.Events++
			result.add(bulk)
		}
		if err != nil {
			return result, fmt.Errorf("failed to send reminders for event %d: %w", event.ID, err)
		}
	}

	s.logger.Info("Event reminders sent",
		zap.Int("events", result.Events),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
