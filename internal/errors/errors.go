package errors

import (
	"fmt"
)

// SiftError is the structured error type for docsift.
// It carries a stable code so callers can match errors without
// string-comparing messages.
type SiftError struct {
	// Code is the unique error code (e.g., "ERR_201_CONTENT_TOO_LARGE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Ingest, Storage, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *SiftError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SiftError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SiftError.
func (e *SiftError) Is(target error) bool {
	if t, ok := target.(*SiftError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SiftError) WithDetail(key, value string) *SiftError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SiftError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SiftError {
	return &SiftError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new SiftError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *SiftError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a SiftError from an existing error.
// The wrapped error's message becomes the SiftError message.
// Returns nil if err is nil.
func Wrap(code string, err error) *SiftError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SiftError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StoreError creates a storage-related error.
func StoreError(message string, cause error) *SiftError {
	return New(ErrCodeStoreQuery, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SiftError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SiftError.
// Returns empty string if not a SiftError.
func GetCode(err error) string {
	if se, ok := err.(*SiftError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SiftError.
// Returns empty string if not a SiftError.
func GetCategory(err error) Category {
	if se, ok := err.(*SiftError); ok {
		return se.Category
	}
	return ""
}
