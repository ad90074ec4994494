package config

import "time"

// Config is the complete service configuration.
type Config struct {
	App           AppConfig           `koanf:"app"`
	Log           LogConfig           `koanf:"log"`
	Server        ServerConfig        `koanf:"server"`
	Pool          PoolConfig          `koanf:"pool"`
	Confirm       ConfirmConfig       `koanf:"confirm"`
	Execution     ExecutionConfig     `koanf:"execution"`
	Audit         AuditConfig         `koanf:"audit"`
	Observability ObservabilityConfig `koanf:"observability"`
}

type AppConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
	Env     string `koanf:"env"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout TimeoutConfig `koanf:"timeout"`
	Rate    RateConfig    `koanf:"rate"`
}

type TimeoutConfig struct {
	Read     time.Duration `koanf:"read"`
	Write    time.Duration `koanf:"write"`
	Shutdown time.Duration `koanf:"shutdown"`
}

// RateConfig limits tool calls per client IP. Zero disables the limiter.
type RateConfig struct {
	Limit int `koanf:"limit"`
}

// PoolConfig sizes every pool the connection provider creates.
type PoolConfig struct {
	Max     int           `koanf:"max"`
	Idle    IdleConfig    `koanf:"idle"`
	Acquire AcquireConfig `koanf:"acquire"`
	Cleanup CleanupConfig `koanf:"cleanup"`
	Ping    PingConfig    `koanf:"ping"`
}

type IdleConfig struct {
	// Min is the number of connections kept open while the pool is idle.
	Min int `koanf:"min"`
	// Timeout is how long an unused pool survives before the reaper closes it.
	Timeout time.Duration `koanf:"timeout"`
}

type AcquireConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

type CleanupConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type PingConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// ConfirmConfig controls write previews.
type ConfirmConfig struct {
	TTL     time.Duration `koanf:"ttl"`
	Cleanup CleanupConfig `koanf:"cleanup"`
}

// ExecutionConfig holds statement defaults applied when a call omits them.
type ExecutionConfig struct {
	Limit   int           `koanf:"limit"`
	Timeout time.Duration `koanf:"timeout"`
}

// AuditConfig selects the audit sinks. The log sink is always active.
type AuditConfig struct {
	File string     `koanf:"file"`
	AMQP AMQPConfig `koanf:"amqp"`
}

type AMQPConfig struct {
	URL      string `koanf:"url"`
	Exchange string `koanf:"exchange"`
	Key      string `koanf:"key"`
}

type ObservabilityConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Service  string        `koanf:"service"`
	Protocol string        `koanf:"protocol"`
	Insecure bool          `koanf:"insecure"`
	Metrics  MetricsConfig `koanf:"metrics"`
	Trace    TraceConfig   `koanf:"trace"`
}

type MetricsConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Interval time.Duration `koanf:"interval"`
}

type TraceConfig struct {
	Endpoint string `koanf:"endpoint"`
}
