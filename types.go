package wpclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Transport performs a single HTTP exchange. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(*http.Request) (*http.Response, error)

// Do implements Transport.
func (f TransportFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware wraps an outbound exchange; call next to continue the chain.
type Middleware func(req *http.Request, next Transport) (*http.Response, error)

// Clock supplies the current time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AuthProvider supplies authentication headers for outbound requests.
// Implementations live in the auth package.
type AuthProvider interface {
	Headers(ctx context.Context) (map[string]string, error)
	// NeedsRenewal reports whether the credentials should be refreshed
	// before the next request.
	NeedsRenewal() bool
}

// Renewer is implemented by providers that can refresh their credentials.
type Renewer interface {
	Renew(ctx context.Context) error
}

// RequestDescriptor is the immutable description of one logical call.
type RequestDescriptor struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Headers     http.Header
	// Timeout overrides the per-attempt timeout when positive.
	Timeout time.Duration
	// MaxRetries overrides the executor default when >= 0.
	MaxRetries int
	// Upload selects the upload timeout default.
	Upload bool
}

// EndpointClass is the cache freshness tier of an endpoint.
type EndpointClass int

const (
	ClassDynamic EndpointClass = iota
	ClassStatic
	ClassSemiStatic
	ClassSession
)

func (c EndpointClass) String() string {
	switch c {
	case ClassStatic:
		return "static"
	case ClassSemiStatic:
		return "semi-static"
	case ClassSession:
		return "session"
	default:
		return "dynamic"
	}
}

// contextKey scopes values stored on request contexts.
type contextKey string

const requestIDKey contextKey = "wpclient_request_id"

// RequestIDFromContext returns the request ID assigned by the executor, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
