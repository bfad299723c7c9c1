package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestBasicHeaders(t *testing.T) {
	b, err := NewBasic("admin", "secret")
	require.NoError(t, err)

	headers, err := b.Headers(context.Background())
	require.NoError(t, err)
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	require.Equal(t, want, headers["Authorization"])
	require.False(t, b.NeedsRenewal())
}

func TestBasicRequiresCredentials(t *testing.T) {
	_, err := NewBasic("", "secret")
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewBasic("admin", "")
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAppPasswordStripsSpaces(t *testing.T) {
	b, err := NewAppPassword("admin", "abcd EFGH 1234 ijkl")
	require.NoError(t, err)

	headers, err := b.Headers(context.Background())
	require.NoError(t, err)
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:abcdEFGH1234ijkl"))
	require.Equal(t, want, headers["Authorization"])
}

func TestAPIKey(t *testing.T) {
	a, err := NewAPIKey("k-123")
	require.NoError(t, err)

	headers, err := a.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"X-API-Key": "k-123"}, headers)

	custom, err := NewAPIKeyHeader("X-Custom-Key", "abc")
	require.NoError(t, err)
	headers, err = custom.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc", headers["X-Custom-Key"])

	_, err = NewAPIKey("")
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNonceAndNone(t *testing.T) {
	headers, err := NewNonce("n0nce").Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, "n0nce", headers["X-WP-Nonce"])

	headers, err = NewNonce("").Headers(context.Background())
	require.NoError(t, err)
	require.Empty(t, headers)

	headers, err = None{}.Headers(context.Background())
	require.NoError(t, err)
	require.Empty(t, headers)
	require.False(t, None{}.NeedsRenewal())
}

type countingSource struct {
	calls  int32
	expiry time.Time
	err    error
}

func (s *countingSource) Token() (*oauth2.Token, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{
		AccessToken: "token-" + string(rune('0'+n)),
		Expiry:      s.expiry,
	}, nil
}

func TestBearerFetchesOnceWhileValid(t *testing.T) {
	src := &countingSource{expiry: time.Now().Add(time.Hour)}
	b, err := NewBearer(src)
	require.NoError(t, err)
	require.True(t, b.NeedsRenewal())

	for i := 0; i < 3; i++ {
		headers, err := b.Headers(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Bearer token-1", headers["Authorization"])
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
	require.False(t, b.NeedsRenewal())
}

func TestBearerRenewsExpiredToken(t *testing.T) {
	src := &countingSource{expiry: time.Now().Add(-time.Minute)}
	b, err := NewBearer(src)
	require.NoError(t, err)

	_, err = b.Headers(context.Background())
	require.Error(t, err)

	src.expiry = time.Now().Add(time.Hour)
	require.True(t, b.NeedsRenewal())
	require.NoError(t, b.Renew(context.Background()))
	headers, err := b.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer token-2", headers["Authorization"])
}

func TestBearerSourceError(t *testing.T) {
	boom := errors.New("boom")
	b, err := NewBearer(&countingSource{err: boom})
	require.NoError(t, err)

	_, err = b.Headers(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestStaticBearer(t *testing.T) {
	b, err := NewStaticBearer("abc")
	require.NoError(t, err)

	headers, err := b.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", headers["Authorization"])

	_, err = NewStaticBearer("")
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "admin"}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestJWTReadsExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	token := signedToken(t, exp)

	j, err := NewJWT(token, WithNow(func() time.Time { return now }))
	require.NoError(t, err)
	require.True(t, j.Expiry().Equal(exp))
	require.False(t, j.NeedsRenewal())

	headers, err := j.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer "+token, headers["Authorization"])
}

func TestJWTNeedsRenewalWithinLeeway(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	token := signedToken(t, now.Add(10*time.Second))

	j, err := NewJWT(token, WithNow(func() time.Time { return now }), WithLeeway(30*time.Second))
	require.NoError(t, err)
	require.True(t, j.NeedsRenewal())
	require.ErrorIs(t, j.Renew(context.Background()), ErrNoRefresh)
}

func TestJWTRenew(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fresh := signedToken(t, now.Add(2*time.Hour))

	j, err := NewJWT(signedToken(t, now.Add(-time.Minute)),
		WithNow(func() time.Time { return now }),
		WithRefresh(func(context.Context) (string, error) { return fresh, nil }),
	)
	require.NoError(t, err)
	require.True(t, j.NeedsRenewal())

	require.NoError(t, j.Renew(context.Background()))
	require.False(t, j.NeedsRenewal())

	headers, err := j.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer "+fresh, headers["Authorization"])
}

func TestJWTWithoutExpiryNeverRenews(t *testing.T) {
	j, err := NewJWT(signedToken(t, time.Time{}))
	require.NoError(t, err)
	require.True(t, j.Expiry().IsZero())
	require.False(t, j.NeedsRenewal())
}

func TestJWTRejectsMalformedToken(t *testing.T) {
	_, err := NewJWT("not-a-jwt")
	require.Error(t, err)
}
