// Package main is the entry point for the gathering-dispatch HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/cache"
	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/email"
	"github.com/popeskul/gathering-dispatch/internal/handler"
	"github.com/popeskul/gathering-dispatch/internal/infrastructure/migrate"
	"github.com/popeskul/gathering-dispatch/internal/middleware"
	"github.com/popeskul/gathering-dispatch/internal/provider"
	"github.com/popeskul/gathering-dispatch/internal/repository"
	"github.com/popeskul/gathering-dispatch/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "Path to the YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		runner := migrate.NewRunner(&migrate.Config{
			DatabaseURL:    cfg.Database.GetURL(),
			MigrationsPath: cfg.Database.MigrationsPath,
		}, logger)
		if err := runner.Up(); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	smsSender, mailSender := selectTransports(cfg, logger)

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, cache.NewStore(redisClient), smsSender, mailSender, logger)

	router := setupRouter(handler.NewHandler(svc, logger))

	chain, rateLimiter := middleware.Chain(middleware.NewConfig(&cfg.Middleware, logger))
	defer rateLimiter.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      chain(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := svc.Scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler on startup", zap.Error(err))
	} else {
		logger.Info("Scheduler started automatically on application startup")
	}

	go func() {
		logger.Info("Starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if svc.Scheduler.IsRunning() {
		if err := svc.Scheduler.Stop(); err != nil {
			logger.Error("Failed to stop scheduler", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// selectTransports picks the SMS and email transports once. A channel with
// no transport stays nil and its sends are refused without a log row.
func selectTransports(cfg *config.Config, logger *zap.Logger) (provider.Sender, email.Sender) {
	var smsSender provider.Sender
	sender, err := provider.Select(cfg, logger)
	switch {
	case err == nil:
		smsSender = provider.NewBreakerSender(sender, &cfg.Provider.CircuitBreaker, logger)
	case errors.Is(err, provider.ErrNotConfigured):
		logger.Warn("SMS and WhatsApp sending disabled", zap.Error(err))
	default:
		logger.Fatal("Failed to configure SMS provider", zap.Error(err))
	}

	var mailSender email.Sender
	mailer, err := email.Select(&cfg.Email)
	switch {
	case err == nil:
		mailSender = mailer
	case errors.Is(err, email.ErrNotConfigured):
		logger.Warn("Email sending disabled", zap.Error(err))
	default:
		logger.Fatal("Failed to configure email sender", zap.Error(err))
	}

	return smsSender, mailSender
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
