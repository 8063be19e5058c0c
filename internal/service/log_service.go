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

// recentWindow is the "last batch" window reported by GetStats.
const recentWindow = time.Hour

type logService struct {
	repo   repository.Repository
	index  MessageIndex
	logger *zap.Logger
}

func NewLogService(repo repository.Repository, index MessageIndex, logger *zap.Logger) LogService {
	return &logService{repo: repo, index: index, logger: logger}
}

func (s *logService) ListLogs(ctx context.Context, query LogQuery) (*LogPage, error) {
	if query.Status != "" && !query.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, query.Status)
	}
	if query.Channel != "" && !query.Channel.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, query.Channel)
	}

	page := query.Page
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		return nil, fmt.Errorf("%w: page must be at most %d", ErrInvalidInput, MaxPage)
	}
	limit := query.Limit
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}

	filter := repository.LogFilter{
		Status:  query.Status,
		Channel: query.Channel,
		Offset:  (page - 1) * limit,
		Limit:   limit,
	}

	logs, err := s.repo.MessageLog().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list message logs: %w", err)
	}

	total, err := s.repo.MessageLog().Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return &LogPage{
		Logs: logs,
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages,
			TotalItems:   total,
			ItemsPerPage: limit,
		},
	}, nil
}

func (s *logService) GetStats(ctx context.Context, now time.Time) (*models.LogStats, error) {
	stats, err := s.repo.MessageLog().Stats(ctx, now.Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to get message stats: %w", err)
	}
	return stats, nil
}

func (s *logService) GetLog(ctx context.Context, id int64) (*models.MessageLog, error) {
	log, err := s.repo.MessageLog().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get message log: %w", err)
	}
	return log, nil
}

// FindByExternalID resolves a provider message id through the Redis index
// and falls back to the database on a miss or a stale entry.
func (s *logService) FindByExternalID(ctx context.Context, externalID string) (*models.MessageLog, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is required", ErrInvalidInput)
	}

	if s.index != nil {
		logID, ok, err := s.index.LookupMessage(ctx, externalID)
		switch {
		case err != nil:
			s.logger.Warn("Failed to read message index", zap.String("externalID", externalID), zap.Error(err))
		case ok:
			log, err := s.repo.MessageLog().GetByID(ctx, logID)
			if err == nil && log.ExternalID.String == externalID {
				return log, nil
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("failed to get message log: %w", err)
			}
		}
	}

	log, err := s.repo.MessageLog().GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message log: %w", err)
	}

	if s.index != nil {
		if err := s.index.PutMessage(ctx, externalID, log.ID); err != nil {
			s.logger.Warn("Failed to cache message ID in Redis", zap.String("externalID", externalID), zap.Error(err))
		}
	}
	return log, nil
}
