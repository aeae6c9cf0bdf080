package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WebhookConfig is a single notification destination.
type WebhookConfig struct {
	Type string `yaml:"type"` // "generic" (default) or "slack"
	URL  string `yaml:"url"`
}

// NotificationConfig controls webhook alerting on coverage drift.
type NotificationConfig struct {
	Enabled    bool            `yaml:"enabled"`
	Webhooks   []WebhookConfig `yaml:"webhooks"`
	Severities []string        `yaml:"severities"` // default: critical, warn
	Cooldown   time.Duration   `yaml:"cooldown"`   // default 1h
}

// Config holds pdbwatch runtime configuration.
type Config struct {
	ListenAddr       string             `yaml:"listenAddr"`       // default ":8080"
	MetricsPath      string             `yaml:"metricsPath"`      // default "/metrics"
	RefreshEvery     time.Duration      `yaml:"refreshEvery"`     // default 5m
	Namespace        string             `yaml:"namespace"`        // empty = all namespaces
	HideZeroReplicas bool               `yaml:"hideZeroReplicas"` // drop scaled-to-zero rollouts
	HistoryDB        string             `yaml:"historyDB"`        // SQLite path, empty = disabled
	Exemptions       string             `yaml:"exemptions"`       // exemptions file path
	ClusterName      string             `yaml:"clusterName"`      // label for reports
	Notifications    NotificationConfig `yaml:"notifications"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		ListenAddr:   ":8080",
		MetricsPath:  "/metrics",
		RefreshEvery: 5 * time.Minute,
	}
}

// Load reads a YAML config file and merges with defaults.
func Load(path string) (*Config, error) {
	c := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}

// Validate checks that the config values are sane.
func (c *Config) Validate() error {
	if c.RefreshEvery < 30*time.Second {
		return fmt.Errorf("refreshEvery must be at least 30s, got %s", c.RefreshEvery)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr must not be empty")
	}
	for i, wh := range c.Notifications.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("notifications.webhooks[%d]: url must not be empty", i)
		}
		switch wh.Type {
		case "", "generic", "slack":
		default:
			return fmt.Errorf("notifications.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	return nil
}
