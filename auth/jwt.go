package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoRefresh is returned by JWT.Renew when no refresh function is set.
var ErrNoRefresh = errors.New("auth: token expired and no refresh function configured")

// RefreshFunc obtains a new signed token.
type RefreshFunc func(ctx context.Context) (string, error)

// JWT sends a bearer JSON Web Token issued by the site's token endpoint.
// The signature is not checked here; only the exp claim is read to decide
// when to refresh.
type JWT struct {
	refresh RefreshFunc
	leeway  time.Duration
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// JWTOption configures a JWT provider.
type JWTOption func(*JWT)

// WithRefresh sets the function used to obtain a replacement token.
func WithRefresh(fn RefreshFunc) JWTOption {
	return func(j *JWT) {
		j.refresh = fn
	}
}

// WithLeeway renews this long before the token actually expires.
func WithLeeway(d time.Duration) JWTOption {
	return func(j *JWT) {
		j.leeway = d
	}
}

// WithNow substitutes the time source.
func WithNow(now func() time.Time) JWTOption {
	return func(j *JWT) {
		j.now = now
	}
}

// NewJWT parses token for its expiry. Tokens without exp never need renewal.
func NewJWT(token string, opts ...JWTOption) (*JWT, error) {
	if token == "" {
		return nil, ErrMissingCredentials
	}

	j := &JWT{
		leeway: 30 * time.Second,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	expiry, err := tokenExpiry(token)
	if err != nil {
		return nil, err
	}
	j.token = token
	j.expiry = expiry
	return j, nil
}

func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("auth: parse jwt: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("auth: read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Expiry returns the exp claim of the current token, zero if absent.
func (j *JWT) Expiry() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.expiry
}

// NeedsRenewal reports whether the token is within leeway of expiring.
func (j *JWT) NeedsRenewal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.expiry.IsZero() {
		return false
	}
	return !j.now().Add(j.leeway).Before(j.expiry)
}

// Renew replaces the token using the refresh function.
func (j *JWT) Renew(ctx context.Context) error {
	if j.refresh == nil {
		return ErrNoRefresh
	}
	token, err := j.refresh(ctx)
	if err != nil {
		return fmt.Errorf("auth: refresh jwt: %w", err)
	}
	expiry, err := tokenExpiry(token)
	if err != nil {
		return err
	}

	j.mu.Lock()
	j.token = token
	j.expiry = expiry
	j.mu.Unlock()
	return nil
}

// Headers returns "Authorization: Bearer {token}".
func (j *JWT) Headers(context.Context) (map[string]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return map[string]string{"Authorization": "Bearer " + j.token}, nil
}
