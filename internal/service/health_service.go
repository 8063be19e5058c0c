package service

import (
	"context"
	"fmt"
	"time"

	"github.com/popeskul/gathering-dispatch/internal/provider"
	"github.com/popeskul/gathering-dispatch/internal/repository"
)

const pingTimeout = 2 * time.Second

type healthService struct {
	repo             repository.Repository
	redis            Pinger
	schedulerService SchedulerService
	breaker          BreakerStatus
	providerName     string
}

// NewHealthService reports on the service dependencies. breaker may be nil
// when the SMS transport is not guarded.
func NewHealthService(
	repo repository.Repository,
	redis Pinger,
	schedulerService SchedulerService,
	breaker BreakerStatus,
	providerName string,
) HealthService {
	return &healthService{
		repo:             repo,
		redis:            redis,
		schedulerService: schedulerService,
		breaker:          breaker,
		providerName:     providerName,
	}
}

func (s *healthService) GetHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:         StatusHealthy,
		Provider:       s.providerName,
		DatabaseStatus: s.ping(ctx, s.repo),
		RedisStatus:    s.ping(ctx, s.redis),
	}

	if s.schedulerService.IsRunning() {
		status.SchedulerStatus = SchedulerRunning
	} else {
		status.SchedulerStatus = SchedulerStopped
	}

	var state string
	if s.breaker != nil {
		state = s.breaker.State()
		requests, failures := s.breaker.Counts()
		status.CircuitBreakerState = state
		if requests > 0 {
			failureRate := float64(failures) / float64(requests) * 100
			status.CircuitBreakerStatus = fmt.Sprintf("Requests: %d, Failures: %d (%.1f%%)", requests, failures, failureRate)
		} else {
			status.CircuitBreakerStatus = "No requests yet"
		}
	}

	if status.DatabaseStatus != Connected || status.RedisStatus != Connected {
		status.Status = StatusUnhealthy
	} else if state == provider.BreakerOpen {
		status.Status = StatusDegraded
	}

	return status
}

func (s *healthService) ping(ctx context.Context, p Pinger) string {
	if p == nil {
		return Disconnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return Disconnected
	}
	return Connected
}
