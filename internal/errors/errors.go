package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeSessionExpired     ErrorCode = "AUTH-002"
	ErrCodeNotAuthenticated   ErrorCode = "AUTH-003"
	ErrCodeNotAuthorized      ErrorCode = "AUTH-004"
	ErrCodeGoogleExchange     ErrorCode = "AUTH-005"

	// Network errors (NET-001 to NET-099)
	ErrCodeNetworkUnavailable ErrorCode = "NET-001"
	ErrCodeNetworkTimeout     ErrorCode = "NET-002"

	// API errors (API-001 to API-099)
	ErrCodeAPIRequest           ErrorCode = "API-001"
	ErrCodeAPIMalformedResponse ErrorCode = "API-002"
	ErrCodeAPIValidation        ErrorCode = "API-003"

	// Credential storage errors (STORE-001 to STORE-099)
	ErrCodeStoreRead    ErrorCode = "STORE-001"
	ErrCodeStoreWrite   ErrorCode = "STORE-002"
	ErrCodeStoreCorrupt ErrorCode = "STORE-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid  ErrorCode = "CONFIG-001"
	ErrCodeConfigReadFail ErrorCode = "CONFIG-002"

	// Usage errors (USAGE-001 to USAGE-099)
	ErrCodeUsage ErrorCode = "USAGE-001"
)

// Category returns the prefix of the code, e.g. "AUTH" for "AUTH-001".
func (c ErrorCode) Category() string {
	if i := strings.IndexByte(string(c), '-'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}

// CodedError is an error carrying a stable code and optional user-facing suggestions
type CodedError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *CodedError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError
func New(code ErrorCode, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *CodedError) WithSuggestion(suggestion string) *CodedError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *CodedError) WithSuggestions(suggestions ...string) *CodedError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the first CodedError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a CodedError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Common error constructors for frequently used errors

// NewNotAuthenticatedError is returned by commands that need a session when none exists
func NewNotAuthenticatedError() *CodedError {
	return New(ErrCodeNotAuthenticated, "not logged in").
		WithSuggestion("Run 'fisherman auth login' to authenticate").
		WithSuggestion("Run 'fisherman auth status' to inspect the stored session")
}

// NewNotAuthorizedError is returned when the current role may not open a screen or resource
func NewNotAuthorizedError(resource string) *CodedError {
	return New(ErrCodeNotAuthorized, fmt.Sprintf("collaborator role required for %s", resource)).
		WithSuggestion("Ask a collaborator to change your role")
}

// NewLoginFailedError wraps a failed login result for CLI reporting
func NewLoginFailedError(message string) *CodedError {
	return New(ErrCodeInvalidCredentials, message).
		WithSuggestion("Check your email and password").
		WithSuggestion("Run 'fisherman password forgot --email <email>' to reset your password")
}

// NewNetworkError wraps a transport failure talking to the backend
func NewNetworkError(url string, cause error) *CodedError {
	return Wrap(ErrCodeNetworkUnavailable, fmt.Sprintf("could not reach %s", url), cause).
		WithSuggestion("Check your network connection").
		WithSuggestion("Verify api_url in your config or the --api-url flag")
}

// NewStoreCorruptError reports an unreadable persisted credential record
func NewStoreCorruptError(key string, cause error) *CodedError {
	return Wrap(ErrCodeStoreCorrupt, fmt.Sprintf("persisted %s is corrupt", key), cause).
		WithSuggestion("Run 'fisherman auth login' again; the stored session was cleared")
}

// NewConfigInvalidError reports a configuration validation failure
func NewConfigInvalidError(details string) *CodedError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Review ~/.fisherman/config.yaml and FISHERMAN_* environment variables")
}

// NewUsageError reports invalid command usage
func NewUsageError(message string) *CodedError {
	return New(ErrCodeUsage, message)
}
