package config

import (
	"strings"

	"github.com/marmos91/dtftp/pkg/server"
)

// Default values applied by ApplyDefaults for settings the file and the
// environment leave unset.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stderr"

	DefaultSourceType = "filesystem"

	DefaultMetricsPort = 9090
)

// ApplyDefaults fills in zero values with sensible defaults and normalizes
// values that accept multiple spellings (log level case).
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applySourceDefaults(&cfg.Source)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = DefaultLogFormat
	}
	if cfg.Output == "" {
		cfg.Output = DefaultLogOutput
	}
}

func applyServerDefaults(cfg *server.Config) {
	// the daemon defaults to the well-known port; the library itself
	// treats 0 as "ephemeral" for embedding and tests
	if cfg.Port == 0 {
		cfg.Port = server.DefaultPort
	}
	if cfg.Retries == 0 {
		cfg.Retries = server.DefaultRetries
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = server.DefaultTimeout
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = server.DefaultStatsInterval
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = server.DefaultShutdownTimeout
	}
}

func applySourceDefaults(cfg *SourceConfig) {
	if cfg.Type == "" {
		cfg.Type = DefaultSourceType
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}
