package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlgate", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.Rate.Limit)

	assert.Equal(t, 100, cfg.Pool.Max)
	assert.Equal(t, 1, cfg.Pool.Idle.Min)
	assert.Equal(t, time.Hour, cfg.Pool.Idle.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Pool.Acquire.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Pool.Cleanup.Interval)
	assert.Equal(t, 10*time.Second, cfg.Pool.Ping.Timeout)

	assert.Equal(t, 30*time.Minute, cfg.Confirm.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Confirm.Cleanup.Interval)

	assert.Equal(t, 1000, cfg.Execution.Limit)
	assert.Equal(t, 30*time.Second, cfg.Execution.Timeout)

	assert.Empty(t, cfg.Audit.File)
	assert.Equal(t, "sqlgate.audit", cfg.Audit.AMQP.Exchange)
	assert.False(t, cfg.Observability.Enabled)
}

func TestParseYAMLOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
pool:
  max: 20
  idle:
    timeout: 15m
execution:
  limit: 250
audit:
  file: /var/log/sqlgate/audit.log
`))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Pool.Max)
	assert.Equal(t, 15*time.Minute, cfg.Pool.Idle.Timeout)
	assert.Equal(t, 250, cfg.Execution.Limit)
	assert.Equal(t, "/var/log/sqlgate/audit.log", cfg.Audit.File)
	assert.Equal(t, 30*time.Second, cfg.Pool.Acquire.Timeout)
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	t.Setenv("SQLGATE_POOL_IDLE_TIMEOUT", "2h")
	t.Setenv("SQLGATE_EXECUTION_LIMIT", "10")
	t.Setenv("SQLGATE_LOG_LEVEL", "debug")

	cfg, err := Parse([]byte("execution:\n  limit: 500\n"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Pool.Idle.Timeout)
	assert.Equal(t, 10, cfg.Execution.Limit)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadWithoutDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlgate", cfg.App.Name)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"zero pool size", "pool:\n  max: 0\n", "pool.max"},
		{"min idle above max", "pool:\n  max: 2\n  idle:\n    min: 5\n", "pool.idle.min"},
		{"negative limit", "execution:\n  limit: -1\n", "execution.limit"},
		{"zero ttl", "confirm:\n  ttl: 0s\n", "confirm.ttl"},
		{"bad env", "app:\n  env: qa\n", "app.env"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad protocol", "observability:\n  enabled: true\n  protocol: thrift\n", "observability.protocol"},
		{"amqp without exchange", "audit:\n  amqp:\n    url: amqp://localhost\n    exchange: \"\"\n", "audit.amqp.exchange"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfigErrorMessages(t *testing.T) {
	missing := NewMissingFieldError("observability.service")
	assert.Equal(t,
		"config_missing: observability.service required set SQLGATE_OBSERVABILITY_SERVICE env var or add observability.service to config.yaml",
		missing.Error())

	invalid := NewInvalidFieldError("app.env", "unknown environment \"qa\"", []string{EnvDevelopment, EnvProduction})
	assert.Equal(t, "config_invalid: app.env unknown environment \"qa\" valid options: development, production", invalid.Error())
}
