package wpclient

import (
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger receives structured debug output. keysAndValues alternate
// between string keys and arbitrary values.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DebugConfig selects which events are logged.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	LogRateLimit bool
	RequestIDGen func() string
}

// DefaultDebugConfig logs every category once enabled.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogRateLimit: true,
		RequestIDGen: uuid.NewString,
	}
}

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: l}
}

// NewSimpleLogger writes human-readable debug output to stderr.
func NewSimpleLogger() *ZerologLogger {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "wpclient").Logger().
		Level(zerolog.DebugLevel)
	return &ZerologLogger{log: l}
}

func (z *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (z *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	z.log.Info().Fields(keysAndValues).Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (z *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	z.log.Error().Fields(keysAndValues).Msg(msg)
}

// debugLog gates logging on the debug configuration.
type debugLog struct {
	cfg    *DebugConfig
	logger Logger
}

func (d debugLog) on() bool {
	return d.cfg != nil && d.cfg.Enabled && d.logger != nil
}

func (d debugLog) requests() bool  { return d.on() && d.cfg.LogRequests }
func (d debugLog) retries() bool   { return d.on() && d.cfg.LogRetries }
func (d debugLog) cache() bool     { return d.on() && d.cfg.LogCache }
func (d debugLog) rateLimit() bool { return d.on() && d.cfg.LogRateLimit }

func (d debugLog) newRequestID() string {
	if d.cfg == nil || !d.cfg.Enabled || d.cfg.RequestIDGen == nil {
		return ""
	}
	return d.cfg.RequestIDGen()
}
