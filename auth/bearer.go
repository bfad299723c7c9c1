package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// Bearer sends tokens obtained from an oauth2.TokenSource. The current
// token is cached until it stops being valid.
type Bearer struct {
	src oauth2.TokenSource

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewBearer wraps src.
func NewBearer(src oauth2.TokenSource) (*Bearer, error) {
	if src == nil {
		return nil, ErrMissingCredentials
	}
	return &Bearer{src: src}, nil
}

// NewStaticBearer always sends token.
func NewStaticBearer(token string) (*Bearer, error) {
	if token == "" {
		return nil, ErrMissingCredentials
	}
	return NewBearer(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// NeedsRenewal reports whether no valid token is held.
func (b *Bearer) NeedsRenewal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.tok.Valid()
}

// Renew fetches a fresh token from the source.
func (b *Bearer) Renew(context.Context) error {
	tok, err := b.src.Token()
	if err != nil {
		return fmt.Errorf("auth: fetch token: %w", err)
	}

	b.mu.Lock()
	b.tok = tok
	b.mu.Unlock()
	return nil
}

// Headers returns "Authorization: {type} {token}", renewing first if needed.
func (b *Bearer) Headers(ctx context.Context) (map[string]string, error) {
	if b.NeedsRenewal() {
		if err := b.Renew(ctx); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	tok := b.tok
	b.mu.Unlock()

	if !tok.Valid() {
		return nil, fmt.Errorf("auth: token source returned an invalid token")
	}
	return map[string]string{"Authorization": tok.Type() + " " + tok.AccessToken}, nil
}
