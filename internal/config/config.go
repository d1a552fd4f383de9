// Package config handles loading, validating, and applying defaults to the
// gh-notifier runtime configuration. Configuration is read from a TOML file
// and may be overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/bryonbaker/gh-notifier/internal/apperrors"
	"github.com/bryonbaker/gh-notifier/internal/models"
)

// RuntimeConfig is the top-level, TOML-serialized configuration recognized
// by the daemon and the CLI.
type RuntimeConfig struct {
	PollIntervalSec            uint64               `toml:"poll_interval_sec"`
	MarkAsReadOnNotify         bool                 `toml:"mark_as_read_on_notify"`
	PersistentNotifications    bool                 `toml:"persistent_notifications"`
	NotificationRecoveryWindow uint64               `toml:"notification_recovery_window_hours"`
	BatchSize                  uint                 `toml:"batch_size"`
	BatchIntervalSec           uint64               `toml:"batch_interval_sec"`
	RetryCount                 uint32               `toml:"retry_count"`
	RetryIntervalSec           uint64               `toml:"retry_interval_sec"`
	APIEnabled                 bool                 `toml:"api_enabled"`
	APIPort                    uint16               `toml:"api_port"`
	LogLevel                   string               `toml:"log_level"`
	LogFormat                  string               `toml:"log_format"`
	LogFilePath                string               `toml:"log_file_path"`
	Filter                     models.FilterConfig  `toml:"filter"`

	// DBPath, StatePath, and CredentialPath are derived at Load time from
	// the config directory, not read from the TOML document itself.
	DBPath         string `toml:"-"`
	StatePath      string `toml:"-"`
	CredentialPath string `toml:"-"`

	Retention RetentionConfig `toml:"retention"`
	Storage   StorageConfig   `toml:"storage"`
}

// RetentionConfig controls the supplemented old-notification cleanup loop.
type RetentionConfig struct {
	Enabled             bool   `toml:"enabled"`
	CleanupIntervalSec  uint64 `toml:"cleanup_interval_sec"`
	RetentionPeriodDays uint64 `toml:"retention_period_days"`
}

// StorageConfig controls the supplemented database-size monitoring loop.
type StorageConfig struct {
	MonitorIntervalSec uint64 `toml:"monitor_interval_sec"`
	WarningBytes        int64  `toml:"warning_bytes"`
	CriticalBytes       int64  `toml:"critical_bytes"`
}

// Dir returns the platform-specific config directory gh-notifier reads and
// writes all its persisted state under.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", &apperrors.ConfigError{Kind: "LoadError", Message: "resolving config directory", Cause: err}
	}
	return filepath.Join(base, "gh-notifier"), nil
}

// Load reads the TOML configuration file at path, applies defaults, applies
// environment-variable overrides, and validates the result. If path does
// not exist, Load proceeds with an empty document so that applyDefaults
// produces a usable first-run configuration.
func Load(path string) (*RuntimeConfig, error) {
	cfg := &RuntimeConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, &apperrors.ConfigError{Kind: "LoadError", Message: "reading config file", Cause: err}
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &apperrors.ConfigError{Kind: "ParseError", Message: "parsing config file", Cause: err}
	}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults(dir)
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, &apperrors.ConfigError{Kind: "ValidationError", Message: err.Error()}
	}

	return cfg, nil
}

// applyDefaults fills in zero-valued fields with the defaults named in the
// configuration's reference documentation.
func (c *RuntimeConfig) applyDefaults(configDir string) {
	if c.PollIntervalSec == 0 {
		c.PollIntervalSec = 30
	}
	if c.RetryCount == 0 {
		c.RetryCount = 3
	}
	if c.RetryIntervalSec == 0 {
		c.RetryIntervalSec = 5
	}
	if c.APIPort == 0 {
		c.APIPort = 48102
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}

	if c.DBPath == "" {
		c.DBPath = filepath.Join(configDir, "gh-notifier.db")
	}
	if c.StatePath == "" {
		c.StatePath = filepath.Join(configDir, "state.json")
	}
	if c.CredentialPath == "" {
		c.CredentialPath = filepath.Join(configDir, "token.json")
	}

	if c.Retention.CleanupIntervalSec == 0 {
		c.Retention.CleanupIntervalSec = 3600
	}
	if c.Retention.RetentionPeriodDays == 0 {
		c.Retention.RetentionPeriodDays = 30
	}

	if c.Storage.MonitorIntervalSec == 0 {
		c.Storage.MonitorIntervalSec = 300
	}
	if c.Storage.WarningBytes == 0 {
		c.Storage.WarningBytes = 200 * 1024 * 1024
	}
	if c.Storage.CriticalBytes == 0 {
		c.Storage.CriticalBytes = 500 * 1024 * 1024
	}
}

// applyEnvOverrides applies environment-variable overrides per spec §6.
func (c *RuntimeConfig) applyEnvOverrides() {
	if v := os.Getenv("LOG"); v != "" {
		c.LogLevel = v
	}
}

// validate checks that all required fields fall within the ranges named in
// spec §3.
func (c *RuntimeConfig) validate() error {
	if c.PollIntervalSec < 5 || c.PollIntervalSec > 3600 {
		return fmt.Errorf("poll_interval_sec must be between 5 and 3600; got %d", c.PollIntervalSec)
	}
	if c.RetryCount > 10 {
		return fmt.Errorf("retry_count must be at most 10; got %d", c.RetryCount)
	}
	if c.RetryIntervalSec > 300 {
		return fmt.Errorf("retry_interval_sec must be at most 300; got %d", c.RetryIntervalSec)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of: debug, info, warn, error; got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be one of: json, text; got %q", c.LogFormat)
	}

	return nil
}
