package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dtftp/pkg/server"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validConfig() *Config {
	cfg := &Config{Source: SourceConfig{Type: "memory"}}
	ApplyDefaults(cfg)
	return cfg
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
server:
  port: 1069
  retries: 3
  timeout: 250ms
  max_sessions: 50
source:
  type: filesystem
  filesystem:
    root: /srv/tftp
metrics:
  enabled: true
  port: 9100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 1069, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Server.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.Timeout)
	assert.Equal(t, 50, cfg.Server.MaxSessions)
	assert.Equal(t, "filesystem", cfg.Source.Type)
	assert.Equal(t, "/srv/tftp", cfg.Source.Filesystem["root"])
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
source:
  type: memory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, DefaultLogOutput, cfg.Logging.Output)
	assert.Equal(t, server.DefaultPort, cfg.Server.Port)
	assert.Equal(t, server.DefaultRetries, cfg.Server.Retries)
	assert.Equal(t, server.DefaultTimeout, cfg.Server.Timeout)
	assert.Equal(t, server.DefaultStatsInterval, cfg.Server.StatsInterval)
	assert.Equal(t, DefaultMetricsPort, cfg.Metrics.Port)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: INFO
source:
  type: memory
`)
	t.Setenv("DTFTP_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfigFile(t, `
source:
  type: carrier-pigeon
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCustomRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			"burst without rate",
			func(c *Config) { c.Server.SessionBurst = 10 },
		},
		{
			"filesystem without section",
			func(c *Config) { c.Source = SourceConfig{Type: "filesystem"} },
		},
		{
			"badger without section",
			func(c *Config) { c.Source = SourceConfig{Type: "badger"} },
		},
		{
			"bad log format",
			func(c *Config) { c.Logging.Format = "xml" },
		},
		{
			"metrics port out of range",
			func(c *Config) { c.Metrics.Port = 700000 },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, Validate(validConfig()))
	})
}
