package redcap

import (
	"fmt"
	"strings"
)

// ValidationError reports a payload that does not satisfy the minimum
// contract for its operation type.
type ValidationError struct {
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "required keys: " + strings.Join(e.Missing, ", ")
	}
	return e.Message
}

// NewValidationError creates a validation error with a plain message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// NewMissingKeysError creates a validation error enumerating the required
// payload keys that are absent.
func NewMissingKeysError(missing []string) *ValidationError {
	return &ValidationError{Missing: missing}
}

// ConfigurationError reports inputs the caller got wrong before any network
// traffic happened: a missing format key, an empty endpoint, a nil payload.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(message string) *ConfigurationError {
	return &ConfigurationError{Message: message}
}

// UnknownOperationError reports an operation type absent from the rule
// table. Unrecognized types fail fast instead of silently bypassing
// validation; the empty OperationType is the supported bypass.
type UnknownOperationError struct {
	Type OperationType
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation type %q", string(e.Type))
}

// TransportError reports a failed HTTP exchange: an underlying network
// error, or a non-success status on a file export, where the status line is
// the only failure signal. StatusCode is zero when the call never produced
// a response.
type TransportError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodingError wraps a response body that could not be parsed in the
// requested format.
type DecodingError struct {
	Format string
	Err    error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding %s response: %v", e.Format, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}
