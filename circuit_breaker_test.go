package wpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{}, nil)

	if cb.config.FailureThreshold != 5 {
		t.Errorf("Expected default FailureThreshold=5, got %d", cb.config.FailureThreshold)
	}
	if cb.config.RecoveryTimeout != 60*time.Second {
		t.Errorf("Expected default RecoveryTimeout=60s, got %v", cb.config.RecoveryTimeout)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("Expected default SuccessThreshold=2, got %d", cb.config.SuccessThreshold)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected initial state=closed, got %v", cb.State())
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  10 * time.Second,
		SuccessThreshold: 2,
	}, clock)

	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("Expected closed after one failure, got %v", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected open after threshold, got %v", cb.State())
	}
	if cb.Allow() {
		t.Fatal("Expected open circuit to reject attempts")
	}

	clock.Advance(10 * time.Second)
	if !cb.Allow() {
		t.Fatal("Expected a probe after the recovery timeout")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected half-open, got %v", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected a failed probe to reopen, got %v", cb.State())
	}

	clock.Advance(10 * time.Second)
	cb.Allow()
	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected half-open after one probe success, got %v", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("Expected closed after probe successes, got %v", cb.State())
	}
}

func TestCircuitBreakerSuccessResetsStreak(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2}, newFakeClock())

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Errorf("Expected non-consecutive failures to keep the circuit closed, got %v", cb.State())
	}
}

func TestCircuitBreakerRecordClassifiesErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   *ClientError
		trips bool
	}{
		{"network", &ClientError{Type: ErrorTypeNetwork}, true},
		{"timeout", &ClientError{Type: ErrorTypeTimeout}, true},
		{"server error", &ClientError{Type: ErrorTypeAPI, StatusCode: 503}, true},
		{"not found", &ClientError{Type: ErrorTypeAPI, StatusCode: 404}, false},
		{"auth", &ClientError{Type: ErrorTypeAuthentication, StatusCode: 401}, false},
		{"rate limit", &ClientError{Type: ErrorTypeRateLimit, StatusCode: 429}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1}, newFakeClock())
			cb.record(tt.err)
			if got := cb.State() == StateOpen; got != tt.trips {
				t.Errorf("Expected trips=%v, got %v", tt.trips, got)
			}
		})
	}
}

func TestNilCircuitBreakerAllows(t *testing.T) {
	var cb *CircuitBreaker
	if !cb.Allow() {
		t.Error("Expected nil breaker to allow attempts")
	}
	cb.RecordFailure()
	cb.record(&ClientError{Type: ErrorTypeNetwork})
	if cb.State() != StateClosed {
		t.Errorf("Expected nil breaker to report closed, got %v", cb.State())
	}
}

func TestExecutorCircuitBreakerFailsFast(t *testing.T) {
	server := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusServiceUnavailable, `{"code":"down","message":"maintenance"}`)
	})

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 0
	e := newTestExecutor(t, cfg, WithCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Hour,
	}))

	for i := 0; i < 2; i++ {
		if _, err := e.Execute(context.Background(), NewRequest(http.MethodGet, "posts")); !errors.Is(err, ErrAPI) {
			t.Fatalf(expectedErrorTypeMsg, ErrorTypeAPI, err)
		}
	}
	if e.CircuitState() != StateOpen {
		t.Fatalf("Expected open circuit, got %v", e.CircuitState())
	}

	_, err := e.Execute(context.Background(), NewRequest(http.MethodGet, "posts"))
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf(expectedErrorTypeMsg, ErrorTypeCircuitOpen, err)
	}
	if server.Calls() != 2 {
		t.Errorf("Expected 2 server calls, got %d", server.Calls())
	}
}

func TestCircuitStateString(t *testing.T) {
	if StateHalfOpen.String() != "half-open" {
		t.Errorf("Expected half-open, got %s", StateHalfOpen.String())
	}
	if CircuitState(9).String() != "unknown" {
		t.Errorf("Expected unknown, got %s", CircuitState(9).String())
	}
}

func TestCircuitBreakerHalfOpenLimitsProbes(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 2,
	}, clock)

	cb.RecordFailure()
	clock.Advance(time.Second)

	if !cb.Allow() || !cb.Allow() {
		t.Fatal("Expected two probes to be admitted")
	}
	if cb.Allow() {
		t.Fatal("Expected a third concurrent probe to be rejected")
	}

	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected half-open after one probe success, got %v", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("Expected a finished probe to free its slot")
	}

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("Expected closed after probe successes, got %v", cb.State())
	}
	for i := 0; i < 5; i++ {
		if !cb.Allow() {
			t.Fatal("Expected a closed circuit to admit every attempt")
		}
	}
}

func TestCircuitBreakerCanceledProbeFreesSlot(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 1,
	}, clock)

	cb.RecordFailure()
	clock.Advance(time.Second)

	if !cb.Allow() {
		t.Fatal("Expected one probe to be admitted")
	}
	if cb.Allow() {
		t.Fatal("Expected the probe limit to hold")
	}
	cb.record(&ClientError{Type: ErrorTypeCanceled})
	if !cb.Allow() {
		t.Error("Expected a canceled probe to free its slot")
	}
}

func TestCircuitBreakerReopenResetsProbes(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 1,
	}, clock)

	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected open after failed probe, got %v", cb.State())
	}

	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Error("Expected a fresh probe after the next recovery timeout")
	}
}
