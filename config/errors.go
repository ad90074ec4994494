package config

import (
	"fmt"
	"strings"
)

// ConfigError describes an invalid setting together with what to do about it.
//
//nolint:revive // ConfigError reads better than Error at call sites.
type ConfigError struct {
	Category string // "missing" or "invalid"
	Field    string // koanf path, e.g. "pool.idle.timeout"
	Message  string
	Action   string
}

func (e *ConfigError) Error() string {
	parts := []string{fmt.Sprintf("config_%s:", e.Category), e.Field}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	return strings.Join(parts, " ")
}

// NewMissingFieldError reports a required field left empty.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", envVarFor(field), field),
	}
}

// NewInvalidFieldError reports a field whose value is out of range or not one of validOptions.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{Category: "invalid", Field: field, Message: message}
	if len(validOptions) > 0 {
		err.Action = "valid options: " + strings.Join(validOptions, ", ")
	}
	return err
}

func envVarFor(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
