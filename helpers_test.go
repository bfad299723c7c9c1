package wpclient

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	contentTypeJSON        = "application/json"
	failedWriteResponseMsg = "Failed to write response: %v"
	expectedAttemptsMsg    = "Expected %d attempts, got %d"
	unexpectedErrorMsg     = "Unexpected error: %v"
	expectedErrorTypeMsg   = "Expected error type %s, got %v"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testConfig returns a valid configuration with no pacing and millisecond
// backoff so retry tests run fast.
func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.MinRequestInterval = 0
	cfg.Timeout = 5 * time.Second
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	return cfg
}

// countingServer serves handler and counts requests.
type countingServer struct {
	*httptest.Server
	calls int64
}

func newCountingServer(t *testing.T, handler http.HandlerFunc) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&cs.calls, 1)
		handler(w, r)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *countingServer) Calls() int64 {
	return atomic.LoadInt64(&cs.calls)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		t.Errorf(failedWriteResponseMsg, err)
	}
}

func newTestExecutor(t *testing.T, cfg Config, opts ...Option) *Executor {
	t.Helper()
	e, err := NewExecutor(cfg, opts...)
	if err != nil {
		t.Fatalf("NewExecutor() returned error: %v", err)
	}
	return e
}

func newTestClient(t *testing.T, cfg Config, opts ...Option) *Client {
	t.Helper()
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}
