// Package config loads mcpstat configuration: defaults, then the YAML file,
// then environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mcpstat/internal/logging"
)

// Environment variables that override file values.
const (
	EnvDBPath     = "MCPSTAT_DB_PATH"
	EnvLogPath    = "MCPSTAT_LOG_PATH"
	EnvLogEnabled = "MCPSTAT_LOG_ENABLED"
)

// Config holds all mcpstat configuration.
type Config struct {
	// ServerName identifies the host server in prompts and descriptions.
	ServerName string `yaml:"server_name"`

	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
	Sync     SyncConfig     `yaml:"sync"`

	// Presets pin tags and short descriptions per primitive name,
	// overriding whatever sync derives.
	Presets map[string]PresetConfig `yaml:"presets"`

	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig configures the pipe-delimited invocation log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SyncConfig configures metadata synchronization.
type SyncConfig struct {
	// CleanupOrphans removes metadata for names absent from a sync batch.
	CleanupOrphans bool `yaml:"cleanup_orphans"`
}

// PresetConfig is one pinned metadata entry.
type PresetConfig struct {
	Tags  []string `yaml:"tags"`
	Short string   `yaml:"short"`
}

// LoggingConfig configures the diagnostic logging package. Dir is where the
// per-category log files go when debug mode is on.
type LoggingConfig struct {
	Dir              string `yaml:"dir"`
	logging.Settings `yaml:",inline"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		ServerName: "mcp-server",
		Database:   DatabaseConfig{Path: "./mcp_stat_data.sqlite"},
		Audit:      AuditConfig{Enabled: false, Path: "./mcp_stat.log"},
		Sync:       SyncConfig{CleanupOrphans: true},
		Presets:    map[string]PresetConfig{},
		Logging: LoggingConfig{
			Dir: "./logs",
			Settings: logging.Settings{
				DebugMode: false,
				Level:     "info",
			},
		},
	}
}

// Load reads configuration from a YAML file. A missing file is not an error:
// defaults (plus env overrides) apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Get(logging.CategoryConfig).Info("Config loaded from %s", path)
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Env values win
// over file values.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv(EnvDBPath); path != "" {
		c.Database.Path = path
	}
	if path := os.Getenv(EnvLogPath); path != "" {
		c.Audit.Path = path
	}
	switch strings.ToLower(os.Getenv(EnvLogEnabled)) {
	case "true", "1", "yes":
		c.Audit.Enabled = true
	case "false", "0", "no":
		c.Audit.Enabled = false
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return fmt.Errorf("server_name is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Logging.DebugMode && c.Logging.Dir == "" {
		return fmt.Errorf("logging.dir is required when debug_mode is enabled")
	}
	return nil
}
