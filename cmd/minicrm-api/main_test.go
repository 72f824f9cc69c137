package main

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/app"
)

func TestApplyFlags_Defaults(t *testing.T) {
	cfg, level, err := applyFlags(app.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if level != "info" {
		t.Fatalf("unexpected log level: %s", level)
	}
	if cfg.APIAddr != app.DefaultConfig().APIAddr {
		t.Fatalf("unexpected api addr: %s", cfg.APIAddr)
	}
}

func TestApplyFlags_Overrides(t *testing.T) {
	cfg, level, err := applyFlags(app.DefaultConfig(), []string{
		"-addr=127.0.0.1:4000",
		"-metrics-addr=127.0.0.1:9100",
		"-storage=postgres",
		"-dsn=postgres://minicrm@localhost/minicrm",
		"-delay=250ms",
		"-log-level=debug",
	})
	if err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.APIAddr != "127.0.0.1:4000" || cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Fatalf("unexpected addrs: %s %s", cfg.APIAddr, cfg.MetricsAddr)
	}
	if cfg.StorageDriver != app.StorageDriverPostgres || cfg.PostgresDSN == "" {
		t.Fatalf("unexpected storage: %s %q", cfg.StorageDriver, cfg.PostgresDSN)
	}
	if cfg.APIDelay != 250*time.Millisecond {
		t.Fatalf("unexpected delay: %s", cfg.APIDelay)
	}
	if level != "debug" {
		t.Fatalf("unexpected level: %s", level)
	}
}

func TestApplyFlags_Invalid(t *testing.T) {
	if _, _, err := applyFlags(app.DefaultConfig(), []string{"-delay=soon"}); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestSetupLogger(t *testing.T) {
	prev := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(prev) })

	if err := setupLogger("warn"); err != nil {
		t.Fatalf("setupLogger: %v", err)
	}
	if log.GetLevel() != log.WarnLevel {
		t.Fatalf("unexpected level: %s", log.GetLevel())
	}
	if err := setupLogger("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
