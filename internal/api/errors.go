package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fisherman-publications/fisherman/internal/errors"
)

// ErrMalformedResponse marks a 2xx response whose body could not be understood
var ErrMalformedResponse = stderrors.New("malformed response")

// ErrorResponse represents an API error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error is returned for any non-2xx response
type Error struct {
	Status  int
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

func newError(status int, body []byte) *Error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return &Error{Status: status, Message: errResp.Message}
		}
		if errResp.Error != "" {
			return &Error{Status: status, Message: errResp.Error}
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" || strings.HasPrefix(msg, "<") {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Message: msg}
}

func malformed(route string, cause error) error {
	return errors.Wrap(errors.ErrCodeAPIMalformedResponse,
		fmt.Sprintf("unexpected response from %s", route),
		fmt.Errorf("%w: %v", ErrMalformedResponse, cause))
}

// StatusOf returns the HTTP status carried by err, or 0 if err is not an API error
func StatusOf(err error) int {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 response
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsNetworkError reports whether err came from the transport rather than the server
func IsNetworkError(err error) bool {
	return errors.HasCode(err, errors.ErrCodeNetworkUnavailable)
}

// ServerMessage returns the server-supplied message of an API error, or fallback
func ServerMessage(err error, fallback string) string {
	var apiErr *Error
	if stderrors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Message != http.StatusText(apiErr.Status) {
		return apiErr.Message
	}
	return fallback
}
