package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/config"
)

// Breaker states as reported by BreakerSender.State.
const (
	BreakerClosed   = "closed"
	BreakerHalfOpen = "half-open"
	BreakerOpen     = "open"
)

// BreakerSender guards a Sender with a circuit breaker. Only temporary
// failures count against the breaker; a rejected recipient says nothing
// about provider health.
type BreakerSender struct {
	next   Sender
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewBreakerSender(next Sender, cfg *config.CircuitBreakerConfig, logger *zap.Logger) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        next.Name() + "-circuit-breaker",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.ConsecutiveFails && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTemporary(err)
		},
	}

	return &BreakerSender{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

func (b *BreakerSender) Name() string {
	return b.next.Name()
}

func (b *BreakerSender) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	var result *SendResult
	err := b.execute(ctx, func() error {
		var err error
		result, err = b.next.Send(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BreakerSender) CheckStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	var result *StatusResult
	err := b.execute(ctx, func() error {
		var err error
		result, err = b.next.CheckStatus(ctx, externalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BreakerSender) execute(ctx context.Context, fn func() error) error {
	// A caller that already gave up must not be counted as a provider failure.
	if err := ctx.Err(); err != nil {
		return transportError(fmt.Sprintf("request cancelled: %v", err))
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) {
		b.logger.Warn("Circuit breaker is open, request blocked", zap.String("provider", b.Name()))
		return transportError("service unavailable: circuit breaker is open")
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn("Circuit breaker: too many requests", zap.String("provider", b.Name()))
		return transportError("service unavailable: too many requests")
	}
	return err
}

// State returns the current breaker state.
func (b *BreakerSender) State() string {
	switch b.cb.State() {
	case gobreaker.StateHalfOpen:
		return BreakerHalfOpen
	case gobreaker.StateOpen:
		return BreakerOpen
	default:
		return BreakerClosed
	}
}

// Counts returns requests and failures in the current breaker interval.
func (b *BreakerSender) Counts() (requests, failures uint32) {
	counts := b.cb.Counts()
	return counts.Requests, counts.TotalFailures
}
