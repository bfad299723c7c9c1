package wpclient

import (
	"github.com/docdyhr/wpclient/auth"
)

// authFromConfig builds the provider named by cfg.Method. It returns nil
// for anonymous access.
func authFromConfig(cfg AuthConfig) (AuthProvider, error) {
	switch cfg.Method {
	case "", AuthMethodNone:
		return nil, nil
	case AuthMethodAppPassword:
		return auth.NewAppPassword(cfg.Username, cfg.Password)
	case AuthMethodBasic:
		return auth.NewBasic(cfg.Username, cfg.Password)
	case AuthMethodJWT:
		return auth.NewJWT(cfg.Token)
	case AuthMethodAPIKey:
		return auth.NewAPIKey(cfg.APIKey)
	case AuthMethodCookie:
		return auth.NewNonce(cfg.Token), nil
	default:
		return nil, newValidationError("unknown auth method %q", cfg.Method)
	}
}
