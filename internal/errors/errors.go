package errors

import (
	"errors"
	"fmt"
)

// TermError is the structured error type for termsearch.
// It provides rich context for error handling, logging, and HTTP responses.
type TermError struct {
	// Code is the unique error code (e.g., "ERR_407_MALFORMED_NOTIFICATION").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *TermError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *TermError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with TermError.
func (e *TermError) Is(target error) bool {
	if t, ok := target.(*TermError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *TermError) WithDetail(key, value string) *TermError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion.
// Returns the error for method chaining.
func (e *TermError) WithSuggestion(suggestion string) *TermError {
	e.Suggestion = suggestion
	return e
}

// New creates a new TermError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *TermError {
	return &TermError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a TermError from an existing error.
// The error's message becomes the TermError message.
func Wrap(code string, err error) *TermError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *TermError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an index storage error.
func IOError(message string, cause error) *TermError {
	return New(ErrCodeFileNotFound, message, cause)
}

// UnavailableError creates an index availability error.
// Availability errors are retryable.
func UnavailableError(message string, cause error) *TermError {
	return New(ErrCodeIndexUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *TermError {
	return New(ErrCodeInvalidInput, message, cause)
}

// MalformedNotification creates an error for a notification that violates
// the structural preconditions of processing.
func MalformedNotification(message string) *TermError {
	return New(ErrCodeMalformedNotification, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *TermError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the first TermError in err's chain.
func as(err error) (*TermError, bool) {
	var te *TermError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
// Returns true if any TermError in the chain has the Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := as(err); ok {
		return te.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := as(err); ok {
		return te.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a TermError.
// Returns empty string if there is no TermError in the chain.
func GetCode(err error) string {
	if te, ok := as(err); ok {
		return te.Code
	}
	return ""
}

// GetCategory extracts the category from a TermError.
// Returns empty string if there is no TermError in the chain.
func GetCategory(err error) Category {
	if te, ok := as(err); ok {
		return te.Category
	}
	return ""
}
