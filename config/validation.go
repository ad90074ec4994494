package config

import (
	"fmt"
	"slices"
	"time"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Exporter settings
const (
	ProtocolHTTP   = "http"
	ProtocolGRPC   = "grpc"
	EndpointStdout = "stdout"
)

// Validate checks cfg and returns the first problem found.
func Validate(cfg *Config) error {
	if err := validateApp(&cfg.App); err != nil {
		return fmt.Errorf("app config: %w", err)
	}
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validatePool(&cfg.Pool); err != nil {
		return fmt.Errorf("pool config: %w", err)
	}
	if err := validateConfirm(&cfg.Confirm); err != nil {
		return fmt.Errorf("confirm config: %w", err)
	}
	if err := validateExecution(&cfg.Execution); err != nil {
		return fmt.Errorf("execution config: %w", err)
	}
	if err := validateAudit(&cfg.Audit); err != nil {
		return fmt.Errorf("audit config: %w", err)
	}
	if err := validateObservability(&cfg.Observability); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

func validateApp(cfg *AppConfig) error {
	if cfg.Name == "" {
		return NewMissingFieldError("app.name")
	}
	envs := []string{EnvDevelopment, EnvStaging, EnvProduction}
	if !slices.Contains(envs, cfg.Env) {
		return NewInvalidFieldError("app.env", fmt.Sprintf("unknown environment %q", cfg.Env), envs)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return NewInvalidFieldError("server.port", fmt.Sprintf("port %d out of range", cfg.Port), nil)
	}
	if cfg.Rate.Limit < 0 {
		return NewInvalidFieldError("server.rate.limit", "must not be negative", nil)
	}
	return positiveDurations(map[string]time.Duration{
		"server.timeout.read":     cfg.Timeout.Read,
		"server.timeout.write":    cfg.Timeout.Write,
		"server.timeout.shutdown": cfg.Timeout.Shutdown,
	})
}

func validatePool(cfg *PoolConfig) error {
	if cfg.Max <= 0 {
		return NewInvalidFieldError("pool.max", "must be positive", nil)
	}
	if cfg.Idle.Min < 0 || cfg.Idle.Min > cfg.Max {
		return NewInvalidFieldError("pool.idle.min", fmt.Sprintf("must be between 0 and pool.max (%d)", cfg.Max), nil)
	}
	return positiveDurations(map[string]time.Duration{
		"pool.idle.timeout":     cfg.Idle.Timeout,
		"pool.acquire.timeout":  cfg.Acquire.Timeout,
		"pool.cleanup.interval": cfg.Cleanup.Interval,
		"pool.ping.timeout":     cfg.Ping.Timeout,
	})
}

func validateConfirm(cfg *ConfirmConfig) error {
	return positiveDurations(map[string]time.Duration{
		"confirm.ttl":              cfg.TTL,
		"confirm.cleanup.interval": cfg.Cleanup.Interval,
	})
}

func validateExecution(cfg *ExecutionConfig) error {
	if cfg.Limit <= 0 {
		return NewInvalidFieldError("execution.limit", "must be positive", nil)
	}
	return positiveDurations(map[string]time.Duration{"execution.timeout": cfg.Timeout})
}

func validateAudit(cfg *AuditConfig) error {
	if cfg.AMQP.URL != "" && cfg.AMQP.Exchange == "" {
		return NewMissingFieldError("audit.amqp.exchange")
	}
	return nil
}

func validateObservability(cfg *ObservabilityConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Service == "" {
		return NewMissingFieldError("observability.service")
	}
	protocols := []string{ProtocolHTTP, ProtocolGRPC}
	if !slices.Contains(protocols, cfg.Protocol) {
		return NewInvalidFieldError("observability.protocol", fmt.Sprintf("unknown protocol %q", cfg.Protocol), protocols)
	}
	if cfg.Metrics.Interval <= 0 {
		return NewInvalidFieldError("observability.metrics.interval", "must be positive", nil)
	}
	return nil
}

func positiveDurations(fields map[string]time.Duration) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if fields[k] <= 0 {
			return NewInvalidFieldError(k, "must be a positive duration", nil)
		}
	}
	return nil
}
