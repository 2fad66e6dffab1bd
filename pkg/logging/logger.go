// Package logging is the service's slog setup: JSON lines on stdout, every
// line stamped with service and build identity, and request scoped ids pulled
// from the context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// ParseLevel reads a LOG_LEVEL value. Unknown values mean info.
func ParseLevel(s string) LogLevel {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := slogLevels[level]; ok {
		return level
	}
	return LevelInfo
}

type Config struct {
	Level       LogLevel
	ServiceName string
	Environment string
	Version     string
	Output      io.Writer
	AddSource   bool
}

// DefaultConfig reads LOG_LEVEL, ENVIRONMENT and VERSION
func DefaultConfig(serviceName string) *Config {
	return &Config{
		Level:       ParseLevel(os.Getenv("LOG_LEVEL")),
		ServiceName: serviceName,
		Environment: envOr("ENVIRONMENT", "development"),
		Version:     envOr("VERSION", "unknown"),
		Output:      os.Stdout,
	}
}

// Logger is a slog.Logger with helpers for the record shapes this service
// emits: HTTP access lines, audit and override records, storage and broker
// calls.
type Logger struct {
	*slog.Logger
}

func New(config *Config) *Logger {
	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	level, ok := slogLevels[config.Level]
	if !ok {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:       level,
		AddSource:   config.AddSource,
		ReplaceAttr: utcTimestamps,
	})
	return &Logger{Logger: slog.New(handler).With(
		"service", config.ServiceName,
		"environment", config.Environment,
		"version", config.Version,
	)}
}

func utcTimestamps(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
	}
	return a
}

// NewNop discards everything
func NewNop() *Logger {
	return New(&Config{Level: LevelError, ServiceName: "nop", Output: io.Discard})
}

// SetDefault routes the slog package functions through l
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

// With returns a child Logger carrying args on every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With("error", err.Error())
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// Audit records an operator action on a warehouse resource: cancelling a
// route, deleting a shelf, reprinting a label.
func (l *Logger) Audit(ctx context.Context, action, resource, resourceID, userID string, details map[string]any) {
	l.WithContext(ctx).Info("Audit event", auditAttrs(action, resource, resourceID, userID, details)...)
}

// Override records an action that bypassed a quantity check or the ledger,
// such as completing picking by hand. It logs at warn so it stands out from
// normal completions.
func (l *Logger) Override(ctx context.Context, action, resource, resourceID, userID string, details map[string]any) {
	attrs := append([]any{"override", true}, auditAttrs(action, resource, resourceID, userID, details)...)
	l.WithContext(ctx).Warn("Administrative override", attrs...)
}

func auditAttrs(action, resource, resourceID, userID string, details map[string]any) []any {
	attrs := []any{
		"auditAction", action,
		"resource", resource,
		"resourceId", resourceID,
		"userId", userID,
	}
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// HTTPRequest writes the access line; 4xx logs at warn, 5xx at error
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration, clientIP, userAgent string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	l.WithContext(ctx).Log(ctx, level, "HTTP request",
		"method", method,
		"path", path,
		"status", status,
		"durationMs", duration.Milliseconds(),
		"clientIP", clientIP,
		"userAgent", userAgent,
	)
}

// DatabaseQuery logs successful calls at debug only
func (l *Logger) DatabaseQuery(ctx context.Context, collection, operation string, duration time.Duration, success bool, rowsAffected int64) {
	l.WithContext(ctx).Log(ctx, failureLevel(success), "Database query",
		"collection", collection,
		"operation", operation,
		"durationMs", duration.Milliseconds(),
		"success", success,
		"rowsAffected", rowsAffected,
	)
}

func (l *Logger) KafkaPublish(ctx context.Context, topic, eventType string, success bool, duration time.Duration) {
	l.WithContext(ctx).Log(ctx, failureLevel(success), "Kafka publish",
		"topic", topic,
		"eventType", eventType,
		"success", success,
		"durationMs", duration.Milliseconds(),
	)
}

func failureLevel(success bool) slog.Level {
	if success {
		return slog.LevelDebug
	}
	return slog.LevelError
}

// Panic logs a recovered panic with the stack of the panicking goroutine
func (l *Logger) Panic(ctx context.Context, recovered any) {
	stack := make([]byte, 8<<10)
	stack = stack[:runtime.Stack(stack, false)]
	l.WithContext(ctx).Error("Panic recovered", "panic", recovered, "stack", string(stack))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
