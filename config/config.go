// Package config loads service configuration from defaults, YAML files and
// SQLGATE_* environment variables, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read as configuration.
// SQLGATE_POOL_IDLE_TIMEOUT maps to pool.idle.timeout.
const EnvPrefix = "SQLGATE_"

// DefaultFile is read when Load is given no path. It is optional.
const DefaultFile = "config.yaml"

// Load reads configuration. An explicit path must exist; the default file and
// the per-environment file (config.<env>.yaml) are optional.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else if err := loadOptionalFile(k, DefaultFile); err != nil {
		return nil, err
	}

	if envName := k.String("app.env"); envName != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", envName)); err != nil {
			return nil, err
		}
	}

	return finish(k)
}

// Parse builds configuration from YAML held in memory, layered over defaults
// and under the environment.
func Parse(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "sqlgate",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.timeout.read":     "15s",
		"server.timeout.write":    "60s",
		"server.timeout.shutdown": "10s",
		"server.rate.limit":       50,

		"pool.max":              100,
		"pool.idle.min":         1,
		"pool.idle.timeout":     "1h",
		"pool.acquire.timeout":  "30s",
		"pool.cleanup.interval": "10m",
		"pool.ping.timeout":     "10s",

		"confirm.ttl":              "30m",
		"confirm.cleanup.interval": "5m",

		"execution.limit":   1000,
		"execution.timeout": "30s",

		"audit.file":          "",
		"audit.amqp.url":      "",
		"audit.amqp.exchange": "sqlgate.audit",
		"audit.amqp.key":      "sql.executed",

		"observability.enabled":          false,
		"observability.service":          "sqlgate",
		"observability.protocol":         ProtocolHTTP,
		"observability.insecure":         false,
		"observability.metrics.endpoint": EndpointStdout,
		"observability.metrics.interval": "30s",
		"observability.trace.endpoint":   EndpointStdout,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
