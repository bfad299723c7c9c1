package wpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/docdyhr/wpclient/internal/backoff"
)

var retryNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "120", 2 * time.Minute},
		{"zero", "0", 0},
		{"negative", "-5", 0},
		{"capped", "999999", time.Hour},
		{"http date", retryNow.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", retryNow.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, retryNow); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRateLimitReset(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   time.Time
	}{
		{"retry after", http.Header{"Retry-After": {"10"}}, retryNow.Add(10 * time.Second)},
		{"unix reset", http.Header{"X-Ratelimit-Reset": {"1717243500"}}, time.Unix(1717243500, 0)},
		{"wp reset", http.Header{"X-Wp-Ratelimit-Reset": {"1717243600"}}, time.Unix(1717243600, 0)},
		{"relative reset", http.Header{"X-Ratelimit-Reset": {"15"}}, retryNow.Add(15 * time.Second)},
		{"retry after wins", http.Header{"Retry-After": {"5"}, "X-Ratelimit-Reset": {"1717243500"}}, retryNow.Add(5 * time.Second)},
		{"fallback", http.Header{}, retryNow.Add(time.Minute)},
		{"bad header", http.Header{"X-Ratelimit-Reset": {"later"}}, retryNow.Add(time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rateLimitReset(tt.header, retryNow); !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantNil   bool
		wantType  string
		retryable bool
	}{
		{200, true, "", false},
		{204, true, "", false},
		{400, false, ErrorTypeAPI, false},
		{401, false, ErrorTypeAuthentication, false},
		{403, false, ErrorTypeAuthentication, false},
		{404, false, ErrorTypeAPI, false},
		{429, false, ErrorTypeRateLimit, false},
		{500, false, ErrorTypeAPI, true},
		{503, false, ErrorTypeAPI, true},
	}

	for _, tt := range tests {
		cerr := classifyStatus(tt.status, http.Header{}, nil, retryNow)
		if tt.wantNil {
			if cerr != nil {
				t.Errorf("status %d: expected success, got %v", tt.status, cerr)
			}
			continue
		}
		if cerr == nil || cerr.Type != tt.wantType || cerr.Retryable() != tt.retryable {
			t.Errorf("status %d: expected %s retryable=%v, got %+v", tt.status, tt.wantType, tt.retryable, cerr)
		}
	}
}

func TestClassifyTransportError(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name   string
		parent context.Context
		err    error
		want   string
	}{
		{"caller canceled", canceled, errors.New("read: use of closed connection"), ErrorTypeCanceled},
		{"attempt deadline", context.Background(), context.DeadlineExceeded, ErrorTypeTimeout},
		{"network", context.Background(), errors.New("dial tcp: connection refused"), ErrorTypeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := classifyTransportError(tt.parent, tt.err, retryNow)
			if cerr.Type != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, cerr.Type)
			}
			if cerr.Retryable() != (tt.want == ErrorTypeNetwork) {
				t.Errorf("Unexpected retryable=%v for %s", cerr.Retryable(), tt.want)
			}
		})
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := retryPolicy{
		calc: backoff.NewCalculator(nil, backoff.Schedule{
			Initial:    time.Second,
			Max:        10 * time.Second,
			Multiplier: 2,
		}),
	}

	server := &ClientError{Type: ErrorTypeAPI, StatusCode: 503, retryable: true}
	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for attempt, want := range expected {
		got, ok := policy.delay(server, attempt, 10, retryNow)
		if !ok || got != want {
			t.Errorf("attempt %d: expected %v, got %v (%v)", attempt, want, got, ok)
		}
	}

	if _, ok := policy.delay(server, 3, 3, retryNow); ok {
		t.Error("Expected no retry once the budget is spent")
	}
	if _, ok := policy.delay(&ClientError{Type: ErrorTypeAPI, StatusCode: 404}, 0, 3, retryNow); ok {
		t.Error("Expected no retry for 404")
	}

	limited := &ClientError{Type: ErrorTypeRateLimit, ResetAt: retryNow.Add(7 * time.Second)}
	if _, ok := policy.delay(limited, 0, 3, retryNow); ok {
		t.Error("Expected no retry for 429 by default")
	}

	policy.retryOnRateLimit = true
	if got, ok := policy.delay(limited, 0, 3, retryNow); !ok || got != 7*time.Second {
		t.Errorf("Expected to wait for the reset (7s), got %v (%v)", got, ok)
	}
}
