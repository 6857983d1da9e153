// Package config loads, defaults and validates the dtftp configuration,
// and builds the configured components (data-source provider, metrics).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/marmos91/dtftp/pkg/server"
)

// Config is the complete dtftp daemon configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DTFTP_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Source configuration pattern: Source.Type selects the backend and only
// the matching type-specific section is used. Each backend decodes its own
// option map in its factory.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configures the TFTP supervisor (bind address, retries,
	// timeouts, limits). Uses the server.Config type directly.
	Server server.Config `mapstructure:"server"`

	// Source selects and configures the data-source backend
	Source SourceConfig `mapstructure:"source"`

	// Metrics configures the Prometheus metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// SourceConfig selects the data-source backend.
type SourceConfig struct {
	// Type specifies which backend serves file contents.
	// Valid values: filesystem, memory, s3, badger
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3 badger"`

	// Filesystem options, used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory options, used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// S3 options, used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Badger options, used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled turns metrics collection and the /metrics endpoint on
	Enabled bool `mapstructure:"enabled"`

	// Port for the metrics HTTP server
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// Load reads configuration from file, environment and defaults.
//
// Returns the loaded and validated configuration, or an error describing
// the first problem found.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable and config file handling.
// Environment variables use the DTFTP_ prefix with underscores, e.g.
// DTFTP_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DTFTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file if one exists. A missing file is
// fine; the defaults cover everything except the source path.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/dtftp, falling back to
// ~/.config/dtftp, or the current directory as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dtftp")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dtftp")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
