// Package config loads Troupe configuration through viper and the agent
// roster from a standalone YAML file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Troupe configuration.
type Config struct {
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// SessionConfig controls session behavior.
type SessionConfig struct {
	// Mode selects the phase pipeline: "collaborative" or "variant".
	Mode string `mapstructure:"mode"`
	// ManualSelection suspends variant runs on a selection request
	// instead of picking a winner automatically.
	ManualSelection bool `mapstructure:"manual_selection"`
	// ExecutionTimeoutMinutes bounds each execution fan-out. Zero means
	// no deadline; long-running code generation is not truncated.
	ExecutionTimeoutMinutes int `mapstructure:"execution_timeout_minutes"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Enabled turns file logging on
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Dir is the log directory (default: the config directory)
	Dir string `mapstructure:"dir"`
}

// PathsConfig controls filesystem locations.
type PathsConfig struct {
	// WorkspaceRoot is the parent directory for variant workspaces
	// (default: the current directory)
	WorkspaceRoot string `mapstructure:"workspace_root"`
	// Roster is the path to the agent roster YAML file
	Roster string `mapstructure:"roster"`
}

// ExecutionTimeout returns the execution bound as a time.Duration.
// Zero means no deadline.
func (c *SessionConfig) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutMinutes) * time.Minute
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Mode:                    "collaborative",
			ManualSelection:         false,
			ExecutionTimeoutMinutes: 0, // no deadline
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
		Paths: PathsConfig{
			WorkspaceRoot: ".",
			Roster:        "troupe.yaml",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("session.mode", defaults.Session.Mode)
	viper.SetDefault("session.manual_selection", defaults.Session.ManualSelection)
	viper.SetDefault("session.execution_timeout_minutes", defaults.Session.ExecutionTimeoutMinutes)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("paths.workspace_root", defaults.Paths.WorkspaceRoot)
	viper.SetDefault("paths.roster", defaults.Paths.Roster)
}

// Load reads the configuration from viper into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when
// unmarshaling fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "troupe")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".troupe"
	}
	return filepath.Join(home, ".config", "troupe")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
