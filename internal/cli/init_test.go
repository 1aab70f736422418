package cli

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"notimo/internal/config"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "json")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
	logger = SetupLogger("nonsense", "")
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("unknown levels should fall back to info")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("PORT", "9999")
	t.Setenv("AMQP_URL", "")

	cfg, logger, err := LoadConfig()
	if err != nil || logger == nil {
		t.Fatalf("LoadConfig() = %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}

	t.Setenv("PORT", "nope")
	if _, _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "invalid port") {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestShutdownContext(t *testing.T) {
	ctx, cancel := ShutdownContext(0)
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > 10*time.Second {
		t.Errorf("expected the default 10s deadline, got %v", deadline)
	}
}

func TestDescribe(t *testing.T) {
	cfg := &config.Config{Port: "8081", DataBackend: "sqlite"}
	got := Describe(cfg)
	if len(got)%2 != 0 {
		t.Fatalf("odd number of attributes: %v", got)
	}
	if got[len(got)-1] != "disabled" {
		t.Errorf("amqp should be reported disabled, got %v", got[len(got)-1])
	}
	cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue = "amqp://x", "notimo", "events"
	if got := Describe(cfg); got[len(got)-1] != "notimo/events" {
		t.Errorf("amqp = %v", got[len(got)-1])
	}
}
