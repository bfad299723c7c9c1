package wpclient

import (
	"sync/atomic"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int64

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes the optional executor circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive server or network
	// failures that opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before a probe.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of probe successes that close it again.
	SuccessThreshold int
}

// CircuitBreaker fails attempts fast while a site keeps answering with
// network errors or 5xx responses. Client errors such as 404 or 401 prove
// the site is reachable and count as successes.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	clock  Clock

	state       int64
	failures    int64
	successes   int64
	probes      int64
	lastFailure int64
}

// NewCircuitBreaker fills zero fields with defaults: 5 failures, 60s
// recovery and 2 probe successes.
func NewCircuitBreaker(config CircuitBreakerConfig, clock Clock) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &CircuitBreaker{config: config, clock: clock}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return StateClosed
	}
	return CircuitState(atomic.LoadInt64(&cb.state))
}

// Allow reports whether an attempt may proceed. An open circuit moves to
// half-open once RecoveryTimeout has passed since the last failure. A
// half-open circuit admits at most SuccessThreshold probes at a time.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		return true
	case StateHalfOpen:
		return cb.acquireProbe()
	case StateOpen:
		lastFailure := atomic.LoadInt64(&cb.lastFailure)
		if cb.clock.Now().UnixNano()-lastFailure < int64(cb.config.RecoveryTimeout) {
			return false
		}
		if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
			atomic.StoreInt64(&cb.successes, 0)
		}
		return cb.acquireProbe()
	default:
		return false
	}
}

func (cb *CircuitBreaker) acquireProbe() bool {
	limit := int64(cb.config.SuccessThreshold)
	for {
		n := atomic.LoadInt64(&cb.probes)
		if n >= limit {
			return false
		}
		if atomic.CompareAndSwapInt64(&cb.probes, n, n+1) {
			return true
		}
	}
}

// releaseProbe frees a probe slot; it never drops below zero.
func (cb *CircuitBreaker) releaseProbe() {
	for {
		n := atomic.LoadInt64(&cb.probes)
		if n <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(&cb.probes, n, n-1) {
			return
		}
	}
}

// RecordFailure counts a failure; a half-open circuit reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	atomic.StoreInt64(&cb.lastFailure, cb.clock.Now().UnixNano())

	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		if atomic.AddInt64(&cb.failures, 1) >= int64(cb.config.FailureThreshold) {
			atomic.StoreInt64(&cb.probes, 0)
			atomic.StoreInt64(&cb.state, int64(StateOpen))
		}
	case StateHalfOpen:
		atomic.StoreInt64(&cb.probes, 0)
		atomic.StoreInt64(&cb.state, int64(StateOpen))
		atomic.StoreInt64(&cb.successes, 0)
	}
}

// RecordSuccess resets the failure streak, or counts a probe success.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		atomic.StoreInt64(&cb.failures, 0)
	case StateHalfOpen:
		if atomic.AddInt64(&cb.successes, 1) >= int64(cb.config.SuccessThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateClosed))
			atomic.StoreInt64(&cb.failures, 0)
			atomic.StoreInt64(&cb.successes, 0)
			atomic.StoreInt64(&cb.probes, 0)
			return
		}
		cb.releaseProbe()
	}
}

// record feeds an attempt outcome into the breaker. Only failures that
// suggest the site itself is unhealthy trip it.
func (cb *CircuitBreaker) record(cerr *ClientError) {
	if cb == nil {
		return
	}
	if cerr == nil {
		cb.RecordSuccess()
		return
	}
	switch {
	case cerr.Type == ErrorTypeNetwork, cerr.Type == ErrorTypeTimeout:
		cb.RecordFailure()
	case cerr.Type == ErrorTypeAPI && cerr.StatusCode >= 500:
		cb.RecordFailure()
	case cerr.Type == ErrorTypeCanceled:
		if cb.State() == StateHalfOpen {
			cb.releaseProbe()
		}
	default:
		cb.RecordSuccess()
	}
}
