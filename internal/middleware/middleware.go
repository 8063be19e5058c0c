package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/popeskul/gathering-dispatch/internal/config"
)

type Config struct {
	Logger *zap.Logger

	// CORS is nil when cross-origin access is disabled.
	CORS *CORSConfig

	RateLimit      rate.Limit
	RateLimitBurst int

	RequestTimeout time.Duration
}

func NewConfig(cfg *config.MiddlewareConfig, logger *zap.Logger) *Config {
	c := &Config{
		Logger:         logger,
		RateLimit:      rate.Limit(cfg.RateLimit),
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	}
	if len(cfg.CORSOrigins) > 0 {
		c.CORS = NewCORSConfig(cfg.CORSOrigins)
	}
	return c
}

// Chain wraps a handler with, from the outside in: request id, logging,
// panic recovery, CORS, rate limiting and the request deadline. The
// returned limiter must be stopped on shutdown.
func Chain(config *Config) (func(http.Handler) http.Handler, *RateLimiter) {
	rateLimiter := NewRateLimiter(config.RateLimit, config.RateLimitBurst)

	return func(handler http.Handler) http.Handler {
		h := handler

		h = Timeout(config.RequestTimeout)(h)

		h = rateLimiter.Middleware()(h)

		if config.CORS != nil {
			h = CORS(config.CORS)(h)
		}

		h = Recovery(config.Logger)(h)

		h = Logger(config.Logger)(h)

		h = RequestID(h)

		return h
	}, rateLimiter
}
