// Package config loads the static vigil configuration from a TOML file
// with VIGIL_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mr-karan/vigil/pkg/models"
)

// Config is the root configuration for the service.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	SQLite  SQLiteConfig  `koanf:"sqlite"`
	Logging LoggingConfig `koanf:"logging"`
	Alerts  AlertsConfig  `koanf:"alerts"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// SQLiteConfig holds storage settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `koanf:"level"`
}

// AlertsConfig holds evaluation and notification settings.
type AlertsConfig struct {
	// WebhookURL is the outbound notification endpoint. Empty disables
	// delivery (a configuration error logged once, never fatal).
	WebhookURL string `koanf:"webhook_url"`
	// Channel is the label recorded on notification attempts.
	Channel string `koanf:"channel"`
	// MaxRetries bounds synchronous delivery attempts per alert.
	MaxRetries int `koanf:"max_retries"`
	// BaseBackoff is the first retry delay; attempt n waits base * 2^n.
	BaseBackoff time.Duration `koanf:"base_backoff"`
	// RequestTimeout bounds each individual webhook request.
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// DispatchInterval is how often the dispatcher scans for
	// unnotified high-severity alerts.
	DispatchInterval time.Duration `koanf:"dispatch_interval"`
	// DispatchConcurrency bounds concurrent retry sequences so one
	// alert's backoff does not delay delivery for others.
	DispatchConcurrency int `koanf:"dispatch_concurrency"`
	// MinNotifySeverity is the lowest severity that is delivered.
	MinNotifySeverity int `koanf:"min_notify_severity"`
	// DashboardURL is the action link embedded in notifications.
	DashboardURL string `koanf:"dashboard_url"`
	// TLSInsecureSkipVerify disables certificate checks on delivery.
	TLSInsecureSkipVerify bool `koanf:"tls_insecure_skip_verify"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "vigil.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Alerts: AlertsConfig{
			Channel:             "WEBHOOK",
			MaxRetries:          3,
			BaseBackoff:         5 * time.Second,
			RequestTimeout:      10 * time.Second,
			DispatchInterval:    30 * time.Second,
			DispatchConcurrency: 4,
			MinNotifySeverity:   int(models.SeverityDanger),
			DashboardURL:        "http://localhost:8080",
		},
	}
}

// Load reads configuration from the given TOML file (if present) and
// applies VIGIL_* environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// VIGIL_ALERTS_WEBHOOK_URL -> alerts.webhook_url
	if err := k.Load(env.Provider("VIGIL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "VIGIL_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
