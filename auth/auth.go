// Package auth provides the header sources accepted by wpclient.WithAuth:
// application passwords and basic auth, OAuth2 bearer tokens, JWT tokens,
// API keys, REST nonces and anonymous access.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMissingCredentials is returned when a provider is built without the
// values it needs.
var ErrMissingCredentials = errors.New("auth: missing credentials")

// Basic sends "Authorization: Basic base64(user:pass)". It serves both
// application passwords and plain basic auth.
type Basic struct {
	header string
}

// NewBasic builds a basic-auth provider.
func NewBasic(username, password string) (*Basic, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return &Basic{header: "Basic " + token}, nil
}

// NewAppPassword builds a provider for an application password. The
// grouping spaces shown when the password is generated are removed.
func NewAppPassword(username, appPassword string) (*Basic, error) {
	return NewBasic(username, strings.ReplaceAll(appPassword, " ", ""))
}

// Headers returns the Authorization header.
func (b *Basic) Headers(context.Context) (map[string]string, error) {
	return map[string]string{"Authorization": b.header}, nil
}

// NeedsRenewal is always false; basic credentials do not expire.
func (b *Basic) NeedsRenewal() bool { return false }

// APIKey sends a static key in a header, X-API-Key by default.
type APIKey struct {
	header string
	key    string
}

// NewAPIKey sends key in X-API-Key.
func NewAPIKey(key string) (*APIKey, error) {
	return NewAPIKeyHeader("X-API-Key", key)
}

// NewAPIKeyHeader sends key in the named header.
func NewAPIKeyHeader(header, key string) (*APIKey, error) {
	if header == "" || key == "" {
		return nil, ErrMissingCredentials
	}
	return &APIKey{header: header, key: key}, nil
}

func (a *APIKey) Headers(context.Context) (map[string]string, error) {
	return map[string]string{a.header: a.key}, nil
}

func (a *APIKey) NeedsRenewal() bool { return false }

// Nonce authenticates a logged-in cookie session with X-WP-Nonce. The
// session cookies themselves travel through the HTTP client's jar.
type Nonce struct {
	nonce string
}

// NewNonce builds a nonce provider; an empty nonce sends no header.
func NewNonce(nonce string) *Nonce {
	return &Nonce{nonce: nonce}
}

func (n *Nonce) Headers(context.Context) (map[string]string, error) {
	if n.nonce == "" {
		return map[string]string{}, nil
	}
	return map[string]string{"X-WP-Nonce": n.nonce}, nil
}

func (n *Nonce) NeedsRenewal() bool { return false }

// None sends no credentials.
type None struct{}

func (None) Headers(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func (None) NeedsRenewal() bool { return false }
