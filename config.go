package wpclient

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Auth methods accepted in AuthConfig.Method.
const (
	AuthMethodAppPassword = "app-password"
	AuthMethodBasic       = "basic"
	AuthMethodJWT         = "jwt"
	AuthMethodAPIKey      = "api-key"
	AuthMethodCookie      = "cookie"
	AuthMethodNone        = "none"
)

// Config is the complete client configuration. Start from DefaultConfig and
// override fields; New validates it once and never mutates it afterwards.
type Config struct {
	// SiteID namespaces cache keys so several sites can share one process.
	SiteID string `yaml:"site_id" env:"SITE_ID"`
	// BaseURL is the site root, e.g. https://example.com.
	BaseURL string `yaml:"base_url" env:"SITE_URL"`
	// APIPrefix is joined between BaseURL and the endpoint.
	APIPrefix string `yaml:"api_prefix" env:"API_PREFIX"`
	UserAgent string `yaml:"user_agent" env:"USER_AGENT"`

	// Timeout bounds each attempt of an ordinary request.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// UploadTimeout bounds each upload attempt; zero means 5x Timeout.
	UploadTimeout time.Duration `yaml:"upload_timeout" env:"UPLOAD_TIMEOUT"`
	// MaxRetries is the number of re-attempts after the first try.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// MinRequestInterval is the minimum spacing between request issuances.
	// Zero disables pacing.
	MinRequestInterval time.Duration `yaml:"min_request_interval" env:"MIN_REQUEST_INTERVAL"`

	Retry RetryConfig `yaml:"retry" envPrefix:"RETRY_"`
	Cache CacheConfig `yaml:"cache" envPrefix:"CACHE_"`
	Auth  AuthConfig  `yaml:"auth" envPrefix:"AUTH_"`
}

// RetryConfig controls the backoff schedule.
type RetryConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"max_backoff" env:"MAX_BACKOFF"`
	Multiplier     float64       `yaml:"multiplier" env:"MULTIPLIER"`
	Jitter         float64       `yaml:"jitter" env:"JITTER"`
	// RetryOnRateLimit makes 429 responses retryable, waiting for the reset hint.
	RetryOnRateLimit bool `yaml:"retry_on_rate_limit" env:"ON_RATE_LIMIT"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// TTL is the MemoryCache default, used when Set gets a non-positive ttl.
	TTL        time.Duration `yaml:"ttl" env:"TTL"`
	MaxEntries int           `yaml:"max_entries" env:"MAX_ENTRIES"`
	// MaxMemoryBytes bounds the approximate payload size; zero is unbounded.
	MaxMemoryBytes int64 `yaml:"max_memory_bytes" env:"MAX_MEMORY_BYTES"`
	// CleanupInterval runs a background expiry sweep when positive.
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`

	StaticTTL     time.Duration `yaml:"static_ttl" env:"STATIC_TTL"`
	SemiStaticTTL time.Duration `yaml:"semi_static_ttl" env:"SEMI_STATIC_TTL"`
	DynamicTTL    time.Duration `yaml:"dynamic_ttl" env:"DYNAMIC_TTL"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
}

// AuthConfig selects and parameterises the auth header source.
type AuthConfig struct {
	Method   string `yaml:"method" env:"METHOD"`
	Username string `yaml:"username" env:"USERNAME"`
	// Password holds the application password or basic-auth password.
	Password string `yaml:"password" env:"PASSWORD"`
	Token    string `yaml:"token" env:"TOKEN"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
}

// DefaultConfig returns the documented defaults: 30s timeout, 3 retries,
// one request per second, 1s..10s doubling backoff and a 1000 entry / 50MB
// cache with static 4h, semi-static 2h, dynamic 15m and session 30m TTLs.
func DefaultConfig() Config {
	return Config{
		SiteID:             "default",
		APIPrefix:          "wp-json/wp/v2",
		UserAgent:          "wpclient/" + Version,
		Timeout:            30 * time.Second,
		MaxRetries:         3,
		MinRequestInterval: time.Second,
		Retry: RetryConfig{
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2.0,
		},
		Cache: CacheConfig{
			Enabled:        true,
			TTL:            15 * time.Minute,
			MaxEntries:     1000,
			MaxMemoryBytes: 50 * 1024 * 1024,
			StaticTTL:      4 * time.Hour,
			SemiStaticTTL:  2 * time.Hour,
			DynamicTTL:     15 * time.Minute,
			SessionTTL:     30 * time.Minute,
		},
		Auth: AuthConfig{
			Method: AuthMethodNone,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig, expanding ${VAR}
// references, then applies WORDPRESS_* environment overrides. An empty
// path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "WORDPRESS_"}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// EffectiveUploadTimeout resolves the upload timeout default.
func (c Config) EffectiveUploadTimeout() time.Duration {
	if c.UploadTimeout > 0 {
		return c.UploadTimeout
	}
	return 5 * c.Timeout
}

// ClassTTL returns the configured TTL for an endpoint class.
func (c CacheConfig) ClassTTL(class EndpointClass) time.Duration {
	switch class {
	case ClassStatic:
		return c.StaticTTL
	case ClassSemiStatic:
		return c.SemiStaticTTL
	case ClassSession:
		return c.SessionTTL
	default:
		return c.DynamicTTL
	}
}

// Validate checks every field and reports all violations in one error.
func (c Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateEndpoint()...)
	errs = append(errs, c.validateRequest()...)
	errs = append(errs, c.validateRetry()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateAuth()...)

	if len(errs) > 0 {
		return &ClientError{
			Type:      ErrorTypeValidation,
			Message:   "configuration validation failed",
			Cause:     fmt.Errorf("validation errors: %s", strings.Join(errs, "; ")),
			Timestamp: time.Now(),
		}
	}
	return nil
}

func (c Config) validateEndpoint() []string {
	var errs []string

	if strings.TrimSpace(c.SiteID) == "" {
		errs = append(errs, "siteID must not be empty")
	}
	if c.BaseURL == "" {
		errs = append(errs, "baseURL is required")
		return errs
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		errs = append(errs, fmt.Sprintf("baseURL is not a valid URL: %v", err))
		return errs
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, "baseURL scheme must be http or https")
	}
	if u.Host == "" {
		errs = append(errs, "baseURL must include a host")
	}
	return errs
}

func (c Config) validateRequest() []string {
	var errs []string

	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.UploadTimeout < 0 {
		errs = append(errs, "uploadTimeout must be non-negative")
	}
	if c.MaxRetries < 0 {
		errs = append(errs, "maxRetries must be non-negative")
	}
	if c.MaxRetries > 100 {
		errs = append(errs, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.MinRequestInterval < 0 {
		errs = append(errs, "minRequestInterval must be non-negative")
	}
	return errs
}

func (c Config) validateRetry() []string {
	var errs []string

	if c.Retry.InitialBackoff <= 0 {
		errs = append(errs, "retry initialBackoff must be positive")
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errs = append(errs, "retry maxBackoff must be greater than or equal to initialBackoff")
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, "retry multiplier must be at least 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		errs = append(errs, "retry jitter must be between 0 and 1")
	}
	return errs
}

func (c Config) validateCache() []string {
	var errs []string

	if !c.Cache.Enabled {
		return errs
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache ttl must be positive when cache is enabled")
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, "cache maxEntries must be positive when cache is enabled")
	}
	if c.Cache.MaxMemoryBytes < 0 {
		errs = append(errs, "cache maxMemoryBytes must be non-negative")
	}
	if c.Cache.CleanupInterval < 0 {
		errs = append(errs, "cache cleanupInterval must be non-negative")
	}
	for _, class := range []EndpointClass{ClassStatic, ClassSemiStatic, ClassDynamic, ClassSession} {
		if c.Cache.ClassTTL(class) <= 0 {
			errs = append(errs, fmt.Sprintf("cache %s ttl must be positive", class))
		}
	}
	return errs
}

func (c Config) validateAuth() []string {
	var errs []string

	switch c.Auth.Method {
	case "", AuthMethodNone, AuthMethodCookie:
	case AuthMethodAppPassword, AuthMethodBasic:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			errs = append(errs, fmt.Sprintf("auth method %q requires username and password", c.Auth.Method))
		}
	case AuthMethodJWT:
		if c.Auth.Token == "" {
			errs = append(errs, "auth method \"jwt\" requires a token")
		}
	case AuthMethodAPIKey:
		if c.Auth.APIKey == "" {
			errs = append(errs, "auth method \"api-key\" requires an apiKey")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown auth method %q", c.Auth.Method))
	}
	return errs
}
