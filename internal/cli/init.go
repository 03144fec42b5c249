// Package cli provides common initialization utilities.
// This package consolidates repeated startup patterns across
// cmd/casa and cmd/casa-worker.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"casa/internal/amqp"
	"casa/internal/config"
	"casa/internal/log"
	"casa/internal/storage"
)

// Bootstrap loads the environment, configuration and logging in the
// standard order. Exits the process on invalid configuration.
func Bootstrap() (*config.Config, *slog.Logger) {
	// .env is optional; in production the environment comes from the
	// orchestrator
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(log.NewHandler(cfg.LogLevel, cfg.LogFormat))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore opens the SQLite store and runs migrations.
// Exits the process on failure.
func OpenStore(logger *slog.Logger, dbPath string) *storage.Store {
	store, err := storage.Open(dbPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return store
}

// ConnectAMQP connects to the broker when an URL is configured.
// Returns nil when AMQP is disabled; exits the process when a
// configured broker is unreachable.
func ConnectAMQP(logger *slog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}
