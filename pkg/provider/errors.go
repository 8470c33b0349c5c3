package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors for provider operations.
var (
	// ErrRemoteRejected indicates the provider answered with success=false.
	ErrRemoteRejected = errors.New("rejected by provider")

	// ErrRemoteUnavailable indicates the provider API could not be reached.
	ErrRemoteUnavailable = errors.New("provider unavailable")

	// ErrNotFound indicates the provider does not know the record.
	ErrNotFound = errors.New("record not found")
)

// codeRecordNotFound is Cloudflare's "Record does not exist" error code.
const codeRecordNotFound = 81044

// RejectedError carries the provider's error payload.
type RejectedError struct {
	Operation string
	Status    int
	Codes     []int
	Messages  []string
}

func (e *RejectedError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: rejected by provider (status %d)", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: rejected by provider: %s", e.Operation, strings.Join(e.Messages, "; "))
}

// Is matches ErrRemoteRejected, and ErrNotFound when the provider reported an
// unknown record.
func (e *RejectedError) Is(target error) bool {
	switch target {
	case ErrRemoteRejected:
		return true
	case ErrNotFound:
		if e.Status == http.StatusNotFound {
			return true
		}
		for _, c := range e.Codes {
			if c == codeRecordNotFound {
				return true
			}
		}
	}
	return false
}

// Detail returns the provider error text suitable for showing to a user.
func (e *RejectedError) Detail() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	parts := make([]string, 0, len(e.Messages))
	for i, msg := range e.Messages {
		if i < len(e.Codes) && e.Codes[i] != 0 {
			parts = append(parts, fmt.Sprintf("%s (code %d)", msg, e.Codes[i]))
			continue
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// UnavailableError wraps a transport failure.
type UnavailableError struct {
	Operation string
	Err       error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: provider unavailable: %v", e.Operation, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is matches ErrRemoteUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// ErrConfigMissing creates an error for a missing required configuration field.
func ErrConfigMissing(field string) error {
	return &ConfigError{
		Field:   field,
		Message: "required but not set",
	}
}

// ErrConfigInvalid creates an error for an invalid configuration value.
func ErrConfigInvalid(field, value, message string) error {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsNotFound returns true if the error indicates the record is already gone.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRejected returns true if the provider answered with an error payload.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRemoteRejected)
}

// IsUnavailable returns true if the provider could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
