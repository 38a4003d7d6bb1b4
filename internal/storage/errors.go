// Package storage holds configuration plumbing shared by the kvstore backends.
package storage

import "fmt"

// ConfigError reports a bad or unusable backend configuration value.
type ConfigError struct {
	Backend string
	Field   string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	prefix := e.Backend
	if prefix == "" {
		prefix = "storage"
	}
	switch {
	case e.Field == "":
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	case e.Value == "":
		return fmt.Sprintf("%s: %s: %s", prefix, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s=%q: %s", prefix, e.Field, e.Value, e.Message)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ForBackend returns a copy of err attributed to backend. Non-ConfigError
// values are wrapped as the cause of a new ConfigError.
func ForBackend(backend string, err error) *ConfigError {
	if ce, ok := err.(*ConfigError); ok {
		cp := *ce
		cp.Backend = backend
		return &cp
	}
	return &ConfigError{Backend: backend, Message: err.Error(), Cause: err}
}

// NewConfigError creates a ConfigError for a field validation failure.
func NewConfigError(backend, field, message string) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message}
}

// NewConfigErrorWithCause creates a ConfigError with an underlying cause.
func NewConfigErrorWithCause(backend, field, message string, cause error) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message, Cause: cause}
}
