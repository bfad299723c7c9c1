package wpclient

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
)

func TestAuthFromConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    AuthConfig
		header string
		want   string
	}{
		{"app password strips spaces", AuthConfig{Method: AuthMethodAppPassword, Username: "admin", Password: "abcd efgh"}, "Authorization", "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:abcdefgh"))},
		{"basic", AuthConfig{Method: AuthMethodBasic, Username: "admin", Password: "secret"}, "Authorization", "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))},
		{"api key", AuthConfig{Method: AuthMethodAPIKey, APIKey: "k-123"}, "X-API-Key", "k-123"},
		{"cookie nonce", AuthConfig{Method: AuthMethodCookie, Token: "n0nce"}, "X-WP-Nonce", "n0nce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := authFromConfig(tt.cfg)
			if err != nil {
				t.Fatalf(unexpectedErrorMsg, err)
			}
			headers, err := provider.Headers(context.Background())
			if err != nil {
				t.Fatalf(unexpectedErrorMsg, err)
			}
			if headers[tt.header] != tt.want {
				t.Errorf("Expected %s=%q, got %q", tt.header, tt.want, headers[tt.header])
			}
		})
	}
}

func TestAuthFromConfigAnonymous(t *testing.T) {
	for _, method := range []string{"", AuthMethodNone} {
		provider, err := authFromConfig(AuthConfig{Method: method})
		if err != nil || provider != nil {
			t.Errorf("Expected no provider for method %q, got %v, %v", method, provider, err)
		}
	}
}

func TestAuthFromConfigUnknownMethod(t *testing.T) {
	_, err := authFromConfig(AuthConfig{Method: "kerberos"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf(expectedErrorTypeMsg, ErrorTypeValidation, err)
	}
}

func TestClientSendsConfiguredAuth(t *testing.T) {
	server := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "editor" || pass != "pw" {
			writeJSON(t, w, http.StatusUnauthorized, `{"code":"rest_not_logged_in","message":"no"}`)
			return
		}
		writeJSON(t, w, http.StatusOK, `{"id":1}`)
	})

	cfg := testConfig(server.URL)
	cfg.Auth = AuthConfig{Method: AuthMethodBasic, Username: "editor", Password: "pw"}
	client := newTestClient(t, cfg)

	if _, err := client.Get(context.Background(), "users/me"); err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}
}
