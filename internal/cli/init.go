// Package cli holds the startup steps shared by cmd/notimo and
// cmd/notimo-watch.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"notimo/internal/config"
	"notimo/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
// values and makes it the slog default.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	if format != "" {
		cfg.Format = format
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadConfig reads .env and the environment, sets up logging from the
// result and validates it.
func LoadConfig() (*config.Config, *log.Logger, error) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return cfg, logger, err
	}
	return cfg, logger, nil
}

// MustLoadConfig is LoadConfig that exits the process on invalid
// configuration.
func MustLoadConfig() (*config.Config, *log.Logger) {
	cfg, logger, err := LoadConfig()
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ShutdownContext bounds cleanup after the main context is done. It does
// not inherit cancellation from anything.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, log.FieldError, err)
	os.Exit(1)
}

// Describe renders the settings worth printing at startup.
func Describe(cfg *config.Config) []any {
	amqp := "disabled"
	if cfg.AMQPURL != "" {
		amqp = fmt.Sprintf("%s/%s", cfg.AMQPExchange, cfg.AMQPQueue)
	}
	return []any{
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"timezone", cfg.Timezone,
		"status_filter", cfg.StatusFilter,
		"refresh_schedule", cfg.RefreshSchedule,
		"amqp", amqp,
	}
}
