package wpclient

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docdyhr/wpclient/internal/backoff"
)

// defaultRateLimitWindow is assumed when a 429 carries no reset hint.
const defaultRateLimitWindow = 60 * time.Second

// maxRetryAfter caps how far a server hint may push a retry.
const maxRetryAfter = time.Hour

// retryPolicy decides whether and when a failed attempt is repeated.
type retryPolicy struct {
	calc             *backoff.Calculator
	retryOnRateLimit bool
}

// delay returns the wait before the next attempt and whether to retry at
// all. attempt is zero-based: the first retry follows attempt 0.
func (p retryPolicy) delay(cerr *ClientError, attempt, maxRetries int, now time.Time) (time.Duration, bool) {
	if attempt >= maxRetries || cerr == nil {
		return 0, false
	}

	if cerr.Type == ErrorTypeRateLimit {
		if !p.retryOnRateLimit {
			return 0, false
		}
		if wait := cerr.ResetAt.Sub(now); wait > 0 {
			if wait > maxRetryAfter {
				wait = maxRetryAfter
			}
			return wait, true
		}
		return p.calc.Delay(attempt), true
	}

	if !cerr.retryable {
		return 0, false
	}
	return p.calc.Delay(attempt), true
}

// classifyStatus maps a non-2xx status to a ClientError. It returns nil
// for success.
func classifyStatus(statusCode int, header http.Header, body []byte, now time.Time) *ClientError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	message, code := errorMessage(statusCode, body)
	cerr := &ClientError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Timestamp:  now,
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		cerr.Type = ErrorTypeAuthentication
	case statusCode == http.StatusTooManyRequests:
		cerr.Type = ErrorTypeRateLimit
		cerr.ResetAt = rateLimitReset(header, now)
	case statusCode >= http.StatusInternalServerError:
		cerr.Type = ErrorTypeAPI
		cerr.retryable = true
	default:
		cerr.Type = ErrorTypeAPI
	}
	return cerr
}

// classifyTransportError distinguishes caller cancellation, attempt
// timeout and network failure. parent is the caller's context.
func classifyTransportError(parent context.Context, err error, now time.Time) *ClientError {
	cerr := &ClientError{Cause: err, Timestamp: now}

	switch {
	case parent.Err() != nil && errors.Is(parent.Err(), context.Canceled):
		cerr.Type = ErrorTypeCanceled
		cerr.Message = "request canceled by caller"
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		cerr.Type = ErrorTypeTimeout
		cerr.Message = "request timed out"
	case errors.Is(err, context.Canceled):
		cerr.Type = ErrorTypeCanceled
		cerr.Message = "request canceled"
	default:
		cerr.Type = ErrorTypeNetwork
		cerr.Message = "request failed"
		cerr.retryable = true
	}
	return cerr
}

type timeoutError interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}

// rateLimitReset derives when a 429 lifts: Retry-After first, then the
// reset headers as unix seconds, then a fixed window.
func rateLimitReset(header http.Header, now time.Time) time.Time {
	if d := parseRetryAfter(header.Get("Retry-After"), now); d > 0 {
		return now.Add(d)
	}

	for _, name := range []string{"X-RateLimit-Reset", "X-WP-RateLimit-Reset"} {
		raw := strings.TrimSpace(header.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		// Small values are relative seconds rather than an epoch.
		if n < 1_000_000_000 {
			return now.Add(time.Duration(n) * time.Second)
		}
		return time.Unix(n, 0)
	}

	return now.Add(defaultRateLimitWindow)
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds format and HTTP-date format.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		delay := time.Duration(seconds) * time.Second
		if delay > maxRetryAfter {
			delay = maxRetryAfter
		}
		return delay
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := t.Sub(now)
		if delay > 0 && delay <= maxRetryAfter {
			return delay
		}
	}

	return 0
}
