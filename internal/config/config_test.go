package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Alerts.MaxRetries != 3 || cfg.Alerts.BaseBackoff != 5*time.Second {
		t.Fatalf("unexpected alert defaults %+v", cfg.Alerts)
	}
	if cfg.Alerts.MinNotifySeverity != 3 {
		t.Fatalf("expected severity floor 3, got %d", cfg.Alerts.MinNotifySeverity)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9090

[alerts]
webhook_url = "https://hooks.example.com/abc"
max_retries = 5
base_backoff = "2s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Alerts.WebhookURL != "https://hooks.example.com/abc" {
		t.Fatalf("unexpected webhook url %q", cfg.Alerts.WebhookURL)
	}
	if cfg.Alerts.MaxRetries != 5 || cfg.Alerts.BaseBackoff != 2*time.Second {
		t.Fatalf("unexpected alert overrides %+v", cfg.Alerts)
	}
	// Untouched sections keep their defaults.
	if cfg.SQLite.Path != "vigil.db" {
		t.Fatalf("expected default sqlite path, got %q", cfg.SQLite.Path)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VIGIL_ALERTS_WEBHOOK_URL", "https://hooks.example.com/env")
	t.Setenv("VIGIL_SERVER_PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Alerts.WebhookURL != "https://hooks.example.com/env" {
		t.Fatalf("expected env webhook url, got %q", cfg.Alerts.WebhookURL)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
}
