// Package errors defines the error taxonomy surfaced by the bridge itself.
package errors

import (
	"context"
	"errors"
	"strings"
	"syscall"
)

// ErrorType tags locally generated errors in the client-facing envelope.
// The bridge only ever generates proxy errors; backend failures are
// forwarded verbatim and never pass through this package.
const ErrorTypeProxy = "proxy_error"

// APIError is an error the bridge generates locally, carrying the HTTP
// status to respond with.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a locally generated error with the given status.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Message: message}
}

// IsIgnorableError reports whether err is expected connection noise
// (caller went away, stream torn down) rather than a real failure.
// Such errors are logged at debug level instead of error level.
func IsIgnorableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "client disconnected")
}
