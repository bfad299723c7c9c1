package wpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error types carried in ClientError.Type.
const (
	ErrorTypeValidation     = "Validation"
	ErrorTypeAuthentication = "Authentication"
	ErrorTypeRateLimit      = "RateLimit"
	ErrorTypeAPI            = "API"
	ErrorTypeNetwork        = "Network"
	ErrorTypeTimeout        = "Timeout"
	ErrorTypeCanceled       = "Canceled"
	ErrorTypeCircuitOpen    = "CircuitOpen"
)

// Sentinels for errors.Is; a *ClientError matches the sentinel of its Type.
var (
	ErrValidation     = &ClientError{Type: ErrorTypeValidation, Message: "invalid request"}
	ErrAuthentication = &ClientError{Type: ErrorTypeAuthentication, Message: "authentication failed"}
	ErrRateLimited    = &ClientError{Type: ErrorTypeRateLimit, Message: "rate limited"}
	ErrAPI            = &ClientError{Type: ErrorTypeAPI, Message: "api error"}
	ErrNetwork        = &ClientError{Type: ErrorTypeNetwork, Message: "network failure"}
	ErrTimeout        = &ClientError{Type: ErrorTypeTimeout, Message: "request timed out"}
	ErrCanceled       = &ClientError{Type: ErrorTypeCanceled, Message: "request canceled"}
	ErrCircuitOpen    = &ClientError{Type: ErrorTypeCircuitOpen, Message: "circuit breaker is open"}
)

// ClientError is the single error type returned by the executor and client.
type ClientError struct {
	Type    string
	Message string
	// Code is the backend error code from a {code, message} body.
	Code       string
	StatusCode int
	Cause      error

	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	Attempt    int
	MaxRetries int

	// ResetAt is when a rate limit is expected to lift.
	ResetAt time.Time

	Timestamp time.Time
	Duration  time.Duration

	retryable bool
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries+1)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// Retryable reports whether the executor would re-attempt this failure.
func (e *ClientError) Retryable() bool {
	return e != nil && e.retryable
}

// RetryAfter returns how long until ResetAt, or zero.
func (e *ClientError) RetryAfter() time.Duration {
	if e == nil || e.ResetAt.IsZero() {
		return 0
	}
	if d := time.Until(e.ResetAt); d > 0 {
		return d
	}
	return 0
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.Code != "" {
		info += fmt.Sprintf("Code: %s\n", e.Code)
	}
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries+1)
	}
	if !e.ResetAt.IsZero() {
		info += fmt.Sprintf("Rate Limit Reset: %s\n", e.ResetAt.Format(time.RFC3339))
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsTransient reports whether err is a failure a caller may reasonably try
// again later: network errors, timeouts, rate limits and 5xx responses.
func IsTransient(err error) bool {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return false
	}
	switch clientErr.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit:
		return true
	case ErrorTypeAPI:
		return clientErr.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

func newValidationError(format string, args ...interface{}) *ClientError {
	return &ClientError{
		Type:      ErrorTypeValidation,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
}
