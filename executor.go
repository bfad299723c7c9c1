package wpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/docdyhr/wpclient/internal/backoff"
)

// Executor issues authenticated HTTP requests with per-attempt timeouts,
// retry with backoff and a minimum spacing between issuances. It never
// caches. An Executor is safe for concurrent use.
type Executor struct {
	cfg        Config
	transport  Transport
	clock      Clock
	auth       AuthProvider
	middleware []Middleware

	pacer   *pacer
	breaker *CircuitBreaker
	policy  retryPolicy
	stats   statsRecorder
	metrics *MetricsCollector
	log     debugLog

	renewMu sync.Mutex
}

// NewExecutor validates cfg and builds an executor.
func NewExecutor(cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newExecutor(cfg, buildOptions(opts)), nil
}

func newExecutor(cfg Config, o *options) *Executor {
	retryOnRateLimit := cfg.Retry.RetryOnRateLimit
	if o.retryOnRateLimit != nil {
		retryOnRateLimit = *o.retryOnRateLimit
	}

	schedule := backoff.Schedule{
		Initial:    cfg.Retry.InitialBackoff,
		Max:        cfg.Retry.MaxBackoff,
		Multiplier: cfg.Retry.Multiplier,
		Jitter:     backoff.ClampJitter(cfg.Retry.Jitter),
		Rand:       o.randSource,
	}

	var breaker *CircuitBreaker
	if o.circuitBreaker != nil {
		breaker = NewCircuitBreaker(*o.circuitBreaker, o.clock)
	}

	return &Executor{
		cfg:        cfg,
		transport:  o.transport,
		clock:      o.clock,
		auth:       o.auth,
		middleware: o.middleware,
		pacer:      newPacer(cfg.MinRequestInterval, o.clock),
		breaker:    breaker,
		policy: retryPolicy{
			calc:             backoff.NewCalculator(o.strategy(), schedule),
			retryOnRateLimit: retryOnRateLimit,
		},
		metrics: o.metrics,
		log:     debugLog{cfg: o.debug, logger: o.logger},
	}
}

// NewRequest returns a descriptor that uses the executor's default
// timeout and retry budget.
func NewRequest(method, path string) RequestDescriptor {
	return RequestDescriptor{
		Method:     method,
		Path:       path,
		MaxRetries: -1,
	}
}

// Execute runs d, retrying transient failures, and returns the fully read
// response. Every error is a *ClientError.
func (e *Executor) Execute(ctx context.Context, d RequestDescriptor) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(d.Method))
	if method == "" {
		return nil, newValidationError("request method is required")
	}
	if strings.TrimSpace(d.Path) == "" {
		return nil, newValidationError("request endpoint is required")
	}

	fullURL := e.buildURL(d.Path, d.Query)
	maxRetries := e.cfg.MaxRetries
	if d.MaxRetries >= 0 {
		maxRetries = d.MaxRetries
	}
	timeout := e.timeoutFor(d)

	requestID := e.log.newRequestID()
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}

	e.metrics.RecordRequestStart(method, d.Path)
	defer e.metrics.RecordRequestEnd(method, d.Path)

	if e.log.requests() {
		e.log.logger.Debug("Starting request",
			"requestID", requestID,
			"method", method,
			"url", fullURL,
			"maxRetries", maxRetries,
			"timeout", timeout,
		)
	}

	start := e.clock.Now()
	for attempt := 0; ; attempt++ {
		resp, cerr := e.attempt(ctx, method, fullURL, d, timeout)
		if cerr == nil {
			if e.log.requests() {
				e.log.logger.Info("Request completed",
					"requestID", requestID,
					"statusCode", resp.StatusCode,
					"attempts", attempt+1,
					"duration", e.clock.Now().Sub(start),
				)
			}
			return resp, nil
		}

		cerr.RequestID = requestID
		cerr.Method = method
		cerr.URL = fullURL
		cerr.Endpoint = d.Path
		cerr.Attempt = attempt + 1
		cerr.MaxRetries = maxRetries
		cerr.Duration = e.clock.Now().Sub(start)

		wait, retry := e.policy.delay(cerr, attempt, maxRetries, e.clock.Now())
		if !retry {
			e.metrics.RecordError(cerr.Type, method, d.Path)
			if e.log.on() {
				e.log.logger.Error("Request failed",
					"requestID", requestID,
					"type", cerr.Type,
					"statusCode", cerr.StatusCode,
					"attempts", attempt+1,
					"error", cerr.Message,
				)
			}
			return nil, cerr
		}

		e.metrics.RecordRetry(method, d.Path, attempt+1)
		if e.log.retries() {
			e.log.logger.Warn("Retrying request",
				"requestID", requestID,
				"attempt", attempt+1,
				"maxRetries", maxRetries,
				"backoff", wait,
				"type", cerr.Type,
				"error", cerr.Message,
			)
		}

		if err := sleepContext(ctx, wait); err != nil {
			canceled := classifyTransportError(ctx, err, e.clock.Now())
			canceled.RequestID = requestID
			canceled.Method = method
			canceled.URL = fullURL
			canceled.Endpoint = d.Path
			canceled.Attempt = attempt + 1
			canceled.MaxRetries = maxRetries
			e.metrics.RecordError(canceled.Type, method, d.Path)
			return nil, canceled
		}
	}
}

// attempt performs one paced exchange. Statistics are recorded for every
// exchange that reaches the transport.
func (e *Executor) attempt(ctx context.Context, method, fullURL string, d RequestDescriptor, timeout time.Duration) (*Response, *ClientError) {
	if !e.breaker.Allow() {
		return nil, &ClientError{
			Type:      ErrorTypeCircuitOpen,
			Message:   "circuit breaker is open",
			Timestamp: e.clock.Now(),
		}
	}

	resp, cerr := e.exchange(ctx, method, fullURL, d, timeout)
	if e.breaker != nil {
		e.breaker.record(cerr)
		e.metrics.RecordCircuitState(e.breaker.State())
	}
	return resp, cerr
}

func (e *Executor) exchange(ctx context.Context, method, fullURL string, d RequestDescriptor, timeout time.Duration) (*Response, *ClientError) {
	waited, err := e.pacer.Wait(ctx)
	if err != nil {
		return nil, classifyTransportError(ctx, err, e.clock.Now())
	}
	if waited > 0 {
		e.metrics.RecordPacerWait(waited)
		if e.log.rateLimit() {
			e.log.logger.Debug("Request paced",
				"requestID", RequestIDFromContext(ctx),
				"wait", waited,
			)
		}
	}

	authHeaders, cerr := e.authHeaders(ctx)
	if cerr != nil {
		return nil, cerr
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, fullURL, body)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeValidation,
			Message:   "failed to build request",
			Cause:     err,
			Timestamp: e.clock.Now(),
		}
	}
	e.applyHeaders(req, d, authHeaders)

	start := time.Now()
	httpResp, err := e.executeMiddleware(req)
	if err != nil {
		duration := time.Since(start)
		e.stats.record(attemptOutcome{duration: duration})
		e.metrics.RecordRequest(method, d.Path, 0, duration)
		return nil, classifyTransportError(ctx, err, e.clock.Now())
	}

	payload, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	duration := time.Since(start)
	if err != nil {
		e.stats.record(attemptOutcome{duration: duration})
		e.metrics.RecordRequest(method, d.Path, httpResp.StatusCode, duration)
		return nil, classifyTransportError(ctx, err, e.clock.Now())
	}

	cerr = classifyStatus(httpResp.StatusCode, httpResp.Header, payload, e.clock.Now())
	e.stats.record(attemptOutcome{
		success:     cerr == nil,
		rateLimited: cerr != nil && cerr.Type == ErrorTypeRateLimit,
		authFailure: cerr != nil && cerr.Type == ErrorTypeAuthentication,
		duration:    duration,
	})
	e.metrics.RecordRequest(method, d.Path, httpResp.StatusCode, duration)

	if cerr != nil {
		if cerr.Type == ErrorTypeRateLimit && e.log.rateLimit() {
			e.log.logger.Warn("Rate limited by server",
				"requestID", RequestIDFromContext(ctx),
				"resetAt", cerr.ResetAt,
			)
		}
		return nil, cerr
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       payload,
		IsJSON:     isJSONContentType(httpResp.Header.Get("Content-Type")),
	}, nil
}

// applyHeaders layers defaults, then auth, then caller headers.
func (e *Executor) applyHeaders(req *http.Request, d RequestDescriptor, authHeaders map[string]string) {
	req.Header.Set("Accept", "application/json")
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	if d.Body != nil {
		contentType := d.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	for k, v := range authHeaders {
		req.Header.Set(k, v)
	}

	for k, values := range d.Headers {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
}

// authHeaders renews credentials when the provider asks for it and returns
// the headers for this attempt.
func (e *Executor) authHeaders(ctx context.Context) (map[string]string, *ClientError) {
	if e.auth == nil {
		return nil, nil
	}

	if e.auth.NeedsRenewal() {
		if renewer, ok := e.auth.(Renewer); ok {
			e.renewMu.Lock()
			var err error
			if e.auth.NeedsRenewal() {
				err = renewer.Renew(ctx)
			}
			e.renewMu.Unlock()
			if err != nil {
				return nil, &ClientError{
					Type:      ErrorTypeAuthentication,
					Message:   "credential renewal failed",
					Cause:     err,
					Timestamp: e.clock.Now(),
				}
			}
		}
	}

	headers, err := e.auth.Headers(ctx)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeAuthentication,
			Message:   "failed to obtain auth headers",
			Cause:     err,
			Timestamp: e.clock.Now(),
		}
	}
	return headers, nil
}

func (e *Executor) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(e.middleware) == 0 {
		return e.transport.Do(req)
	}

	current := Transport(e.transport)
	for i := len(e.middleware) - 1; i >= 0; i-- {
		middleware := e.middleware[i]
		next := current
		current = TransportFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}
	return current.Do(req)
}

// buildURL joins base URL, API prefix and endpoint path, then appends the
// encoded query.
func (e *Executor) buildURL(path string, query url.Values) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(e.cfg.BaseURL, "/"))
	b.WriteByte('/')
	if prefix := strings.Trim(e.cfg.APIPrefix, "/"); prefix != "" {
		b.WriteString(prefix)
		b.WriteByte('/')
	}
	b.WriteString(strings.TrimLeft(path, "/"))
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

func (e *Executor) timeoutFor(d RequestDescriptor) time.Duration {
	switch {
	case d.Timeout > 0:
		return d.Timeout
	case d.Upload:
		return e.cfg.EffectiveUploadTimeout()
	default:
		return e.cfg.Timeout
	}
}

// Stats returns a snapshot of the request statistics.
func (e *Executor) Stats() RequestStats {
	return e.stats.snapshot()
}

// ResetStats zeroes the request statistics.
func (e *Executor) ResetStats() {
	e.stats.reset()
}

// CircuitState reports the circuit breaker state; StateClosed when no
// breaker is configured.
func (e *Executor) CircuitState() CircuitState {
	return e.breaker.State()
}

// Config returns the configuration the executor was built with.
func (e *Executor) Config() Config {
	return e.cfg
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
