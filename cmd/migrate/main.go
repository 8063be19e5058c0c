// Package main applies or rolls back the gathering-dispatch schema.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/infrastructure/migrate"
)

const (
	defaultMigrationsPath = "./migrations"
	defaultMigrateSteps   = 1
)

func main() {
	var (
		migrationsPath string
		configPath     string
		steps          int
	)

	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Path to migrations directory")
	flag.StringVar(&configPath, "config", "", "Read the database URL from this config file instead of DATABASE_URL")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply; 0 applies all pending on up and one on down")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	args := flag.Args()
	if len(args) == 0 {
		logger.Fatal("Please specify a command: up, down, or version")
	}
	command := args[0]

	databaseURL, err := resolveDatabaseURL(configPath)
	if err != nil {
		logger.Fatal("Failed to resolve database URL", zap.Error(err))
	}

	runner := migrate.NewRunner(&migrate.Config{
		DatabaseURL:    databaseURL,
		MigrationsPath: migrationsPath,
	}, logger)

	switch command {
	case "up":
		if steps > 0 {
			err = runner.Steps(steps)
		} else {
			err = runner.Up()
		}
		if err != nil {
			logger.Fatal("Failed to run migrations up", zap.Error(err))
		}

	case "down":
		if steps <= 0 {
			steps = defaultMigrateSteps
		}
		if err := runner.Steps(-steps); err != nil {
			logger.Fatal("Failed to run migrations down", zap.Error(err))
		}

	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			logger.Fatal("Failed to get version", zap.Error(err))
		}
		if dirty {
			fmt.Printf("Current version: %d (dirty)\n", version)
		} else {
			fmt.Printf("Current version: %d\n", version)
		}

	default:
		logger.Fatal("Unknown command. Use 'up', 'down', or 'version'", zap.String("command", command))
	}
}

func resolveDatabaseURL(configPath string) (string, error) {
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return "", err
		}
		return cfg.Database.GetURL(), nil
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable or -config is required")
	}
	return databaseURL, nil
}
