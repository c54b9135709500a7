// Package config provides application settings for TunnelGuard.
// Settings are persisted as YAML in the user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tunnelguard/tunnelguard/common"
)

// Config represents the application configuration.
type Config struct {
	// KillSwitch enables the strict traffic-gate mode that drops everything
	// except loopback whenever the tunnel is down.
	KillSwitch bool `yaml:"kill_switch"`
	// AllowLAN permits local-network traffic while the gate is blocking.
	AllowLAN bool `yaml:"allow_lan"`
	// ConnectTimeoutSeconds caps tunnel establishment. 0 means the default.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	// ReconnectDelaySeconds is the fixed backoff before an explicit reconnect.
	ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds"`
	// AutoReconnect re-dials automatically when the established tunnel
	// stops passing traffic.
	AutoReconnect bool `yaml:"auto_reconnect"`
	// HealthCheckIntervalSeconds is how often the established tunnel is
	// probed for connectivity. 0 means the default.
	HealthCheckIntervalSeconds int `yaml:"health_check_interval_seconds"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// Verbose enables debug logging, including engine debug output.
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		KillSwitch:                 false,
		AllowLAN:                   false,
		ConnectTimeoutSeconds:      int(common.ConnectTimeout.Seconds()),
		ReconnectDelaySeconds:      int(common.ReconnectDelay.Seconds()),
		AutoReconnect:              true,
		HealthCheckIntervalSeconds: int(common.HealthCheckInterval.Seconds()),
		ShowNotifications:          true,
		Verbose:                    false,
	}
}

// Load loads the configuration from the config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.saveTo(path); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // reject unknown fields

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize() {
	if c.ConnectTimeoutSeconds <= 0 {
		c.ConnectTimeoutSeconds = int(common.ConnectTimeout.Seconds())
	}
	if c.ReconnectDelaySeconds <= 0 {
		c.ReconnectDelaySeconds = int(common.ReconnectDelay.Seconds())
	}
	if c.HealthCheckIntervalSeconds <= 0 {
		c.HealthCheckIntervalSeconds = int(common.HealthCheckInterval.Seconds())
	}
}

// Save persists the configuration to the config file.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return c.saveTo(path)
}

func (c *Config) saveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}
	return nil
}

func configPath() (string, error) {
	dir, err := common.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}
