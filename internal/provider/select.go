package provider

import (
	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/config"
)

// Select returns the primary client when its credentials are configured,
// otherwise the fallback gateway. It is meant to be called once at startup.
func Select(cfg *config.Config, logger *zap.Logger) (Sender, error) {
	switch {
	case cfg.Provider.Configured():
		logger.Info("Using primary SMS provider", zap.String("baseURL", cfg.Provider.BaseURL))
		return NewPushrClient(&cfg.Provider, logger), nil
	case cfg.Fallback.Configured():
		logger.Info("Primary SMS provider not configured, using fallback gateway",
			zap.String("baseURL", cfg.Fallback.BaseURL))
		return NewGatewayClient(&cfg.Fallback, &cfg.Provider, logger), nil
	default:
		return nil, configurationError("SMS service not configured. Set provider keys or fallback gateway credentials")
	}
}
