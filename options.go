package wpclient

import (
	"net/http"
	"net/url"
	"time"

	"github.com/docdyhr/wpclient/internal/backoff"
)

// Option configures collaborators of an Executor or Client.
type Option func(*options)

// BackoffStrategy selects how retry delays grow.
type BackoffStrategy int

const (
	// ExponentialJitter multiplies the delay each attempt, capped at MaxBackoff.
	ExponentialJitter BackoffStrategy = iota
	// DecorrelatedJitter picks a random delay between Initial and Initial*3^attempt.
	DecorrelatedJitter
)

type options struct {
	transport  Transport
	clock      Clock
	auth       AuthProvider
	logger     Logger
	debug      *DebugConfig
	metrics    *MetricsCollector
	middleware []Middleware

	store             CacheStore
	invalidationRules []InvalidationRule
	classRules        []ClassRule

	backoffStrategy  BackoffStrategy
	randSource       func() float64
	retryOnRateLimit *bool

	circuitBreaker *CircuitBreakerConfig
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.transport == nil {
		o.transport = &http.Client{}
	}
	if o.clock == nil {
		o.clock = systemClock{}
	}
	return o
}

func (o *options) strategy() backoff.Strategy {
	if o.backoffStrategy == DecorrelatedJitter {
		return backoff.Decorrelated{}
	}
	return backoff.Exponential{}
}

// WithTransport sets the component that performs HTTP exchanges.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithHTTPClient sets a custom HTTP client. Its Timeout is left alone;
// per-attempt timeouts come from the request context.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.transport = client
	}
}

// WithClock substitutes the time source used for expiry and pacing.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithAuth sets the source of authentication headers.
func WithAuth(a AuthProvider) Option {
	return func(o *options) {
		o.auth = a
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(o *options) {
		if o.debug == nil {
			o.debug = DefaultDebugConfig()
		}
		o.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(o *options) {
		o.debug = config
	}
}

// WithSimpleLogger enables debug logging to stderr.
func WithSimpleLogger() Option {
	return func(o *options) {
		if o.debug == nil {
			o.debug = DefaultDebugConfig()
		}
		o.debug.Enabled = true
		o.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(o *options) {
		if o.debug == nil {
			o.debug = DefaultDebugConfig()
		}
		o.debug.RequestIDGen = gen
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(o *options) {
		o.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(o *options) {
		o.metrics = collector
	}
}

// WithMiddleware appends middleware; the first added runs outermost.
func WithMiddleware(middleware ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, middleware...)
	}
}

// WithCacheStore replaces the in-memory cache built from Config.Cache.
func WithCacheStore(store CacheStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithInvalidationRules replaces the default write invalidation table.
func WithInvalidationRules(rules ...InvalidationRule) Option {
	return func(o *options) {
		o.invalidationRules = append([]InvalidationRule(nil), rules...)
	}
}

// WithClassRules replaces the default endpoint classification table.
func WithClassRules(rules ...ClassRule) Option {
	return func(o *options) {
		o.classRules = append([]ClassRule(nil), rules...)
	}
}

// WithBackoffStrategy selects the retry delay strategy.
func WithBackoffStrategy(s BackoffStrategy) Option {
	return func(o *options) {
		o.backoffStrategy = s
	}
}

// WithRandSource fixes the jitter source, mainly for tests.
func WithRandSource(fn func() float64) Option {
	return func(o *options) {
		o.randSource = fn
	}
}

// WithCircuitBreaker makes the executor fail fast with a CircuitOpen error
// after repeated network failures or 5xx responses.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(o *options) {
		o.circuitBreaker = &config
	}
}

// WithRetryOnRateLimit overrides Config.Retry.RetryOnRateLimit.
func WithRetryOnRateLimit(retry bool) Option {
	return func(o *options) {
		o.retryOnRateLimit = &retry
	}
}

// RequestOption customises a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	query       url.Values
	headers     http.Header
	contentType string
	timeout     time.Duration
	maxRetries  int
	noCache     bool
}

func buildRequestOptions(opts []RequestOption) *requestOptions {
	ro := &requestOptions{
		query:      url.Values{},
		headers:    http.Header{},
		maxRetries: -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ro)
		}
	}
	return ro
}

// WithQuery adds one query parameter.
func WithQuery(key, value string) RequestOption {
	return func(ro *requestOptions) {
		ro.query.Add(key, value)
	}
}

// WithParams merges query parameters.
func WithParams(params url.Values) RequestOption {
	return func(ro *requestOptions) {
		for k, values := range params {
			for _, v := range values {
				ro.query.Add(k, v)
			}
		}
	}
}

// WithHeader sets a caller header, overriding defaults and auth headers.
func WithHeader(key, value string) RequestOption {
	return func(ro *requestOptions) {
		ro.headers.Set(key, value)
	}
}

// WithContentType sets the body content type.
func WithContentType(contentType string) RequestOption {
	return func(ro *requestOptions) {
		ro.contentType = contentType
	}
}

// WithRequestTimeout overrides the per-attempt timeout for one call.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(ro *requestOptions) {
		ro.timeout = d
	}
}

// WithRetries overrides the retry budget for one call.
func WithRetries(n int) RequestOption {
	return func(ro *requestOptions) {
		ro.maxRetries = n
	}
}

// WithoutCache bypasses the response cache for one GET.
func WithoutCache() RequestOption {
	return func(ro *requestOptions) {
		ro.noCache = true
	}
}
