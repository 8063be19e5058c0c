package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/renderer"
	"github.com/popeskul/gathering-dispatch/internal/repository"
)

type templateService struct {
	repo   repository.Repository
	logger *zap.Logger
}

func NewTemplateService(repo repository.Repository, logger *zap.Logger) TemplateService {
	return &templateService{repo: repo, logger: logger}
}

func (s *templateService) CreateTemplate(ctx context.Context, input TemplateInput) (*models.MessageTemplate, error) {
	tpl := &models.MessageTemplate{IsActive: true}
	apply(tpl, input)

	if err := validateTemplate(tpl); err != nil {
		return nil, err
	}

	if err := s.repo.Template().Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.logger.Info("Template created", zap.Int64("templateID", tpl.ID), zap.String("channel", string(tpl.Channel)))
	return tpl, nil
}

func (s *templateService) UpdateTemplate(ctx context.Context, id int64, input TemplateInput) (*models.MessageTemplate, error) {
	tpl, err := s.repo.Template().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	apply(tpl, input)
	if err := validateTemplate(tpl); err != nil {
		return nil, err
	}

	if err := s.repo.Template().Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return tpl, nil
}

func (s *templateService) GetTemplate(ctx context.Context, id int64) (*models.MessageTemplate, error) {
	tpl, err := s.repo.Template().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

func (s *templateService) ListTemplates(ctx context.Context, activeOnly bool) ([]*models.MessageTemplate, error) {
	templates, err := s.repo.Template().List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

func apply(tpl *models.MessageTemplate, input TemplateInput) {
	if input.Name != nil {
		tpl.Name = strings.TrimSpace(*input.Name)
	}
	if input.Channel != nil {
		tpl.Channel = *input.Channel
	}
	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		tpl.Subject = sql.NullString{String: subject, Valid: subject != ""}
	}
	if input.Body != nil {
		tpl.Body = *input.Body
	}
	if input.Variables != nil {
		tpl.Variables = strings.TrimSpace(*input.Variables)
	}
	if input.IsActive != nil {
		tpl.IsActive = *input.IsActive
	}

	// Subjects only exist on email.
	if tpl.Channel != models.ChannelEmail {
		tpl.Subject = sql.NullString{}
	}
	if tpl.Variables == "" {
		tpl.Variables = strings.Join(renderer.Placeholders(), ", ")
	}
}

func validateTemplate(tpl *models.MessageTemplate) error {
	switch {
	case tpl.Name == "":
		return fmt.Errorf("%w: template name is required", ErrInvalidInput)
	case !tpl.Channel.Valid():
		return fmt.Errorf("%w: channel must be one of sms, whatsapp, email", ErrInvalidInput)
	case strings.TrimSpace(tpl.Body) == "":
		return fmt.Errorf("%w: template body is required", ErrInvalidInput)
	}
	return nil
}
