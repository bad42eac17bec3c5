package errors

import (
	"errors"
	"fmt"
)

// DexError is the structured error type for pagedex.
// It provides rich context for error handling, logging, and user presentation.
type DexError struct {
	// Code is the unique error code (e.g., "ERR_202_CORPUS_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Tool, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with DexError.
func (e *DexError) Is(target error) bool {
	if t, ok := target.(*DexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *DexError) WithDetail(key, value string) *DexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *DexError) WithSuggestion(suggestion string) *DexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DexError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *DexError {
	return &DexError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// DiscoveryError creates an error for an unreadable or empty corpus.
func DiscoveryError(code string, message string, cause error) *DexError {
	return New(code, message, cause)
}

// PersistenceError creates an error for a failed read or write of persisted state.
func PersistenceError(message string, cause error) *DexError {
	return New(ErrCodePersistFailed, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *DexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Non-DexError errors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var de *DexError
	if errors.As(err, &de) {
		return de.Severity == SeverityFatal
	}
	return true
}

// GetCode extracts the error code from a DexError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var de *DexError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ToolInvocationError creates a non-fatal error for a failed external tool run.
func ToolInvocationError(code string, message string, cause error) *DexError {
	return New(code, message, cause)
}

// Reason returns the bare message of err for ledgers and manifests: the
// DexError message without its code, or err.Error() otherwise.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var de *DexError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
