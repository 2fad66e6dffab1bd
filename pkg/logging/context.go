package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	correlationIDKey
	userIDKey
)

// WithContext adds the request, correlation, operator and trace ids found in
// ctx. The correlation id is the one the outbox later stamps on events, so a
// log line and the Kafka event it caused can be joined.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		attrs = append(attrs, "requestId", v)
	}
	if v := CorrelationIDFromContext(ctx); v != "" {
		attrs = append(attrs, "correlationId", v)
	}
	if v := UserIDFromContext(ctx); v != "" {
		attrs = append(attrs, "userId", v)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs, "traceId", sc.TraceID().String(), "spanId", sc.SpanID().String())
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// ContextWithUserID records the operator from X-User-ID
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the acting operator or ""
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

func CorrelationIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}
