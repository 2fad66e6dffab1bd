package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds tracing middleware configuration
type TracingConfig struct {
	TracerName  string
	SkipPaths   []string
	Propagators propagation.TextMapPropagator
}

func DefaultTracingConfig(serviceName string) *TracingConfig {
	return &TracingConfig{
		TracerName:  serviceName,
		SkipPaths:   []string{"/health", "/ready", "/metrics"},
		Propagators: otel.GetTextMapPropagator(),
	}
}

// TracingMiddleware opens one server span per API call. The span continues an
// incoming traceparent, so a scan sent by a handheld gateway that is already
// tracing shows up under the gateway's trace. The span is named after the
// route template to keep ids such as route or shelf ids out of span names.
func TracingMiddleware(config *TracingConfig) gin.HandlerFunc {
	tracer := otel.Tracer(config.TracerName)
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		parent := config.Propagators.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(parent, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethodKey.String(c.Request.Method),
				semconv.HTTPRouteKey.String(route),
				attribute.String("request.id", GetRequestID(c)),
				attribute.String("correlation.id", GetCorrelationID(c)),
			),
		)
		defer span.End()
		if operator := GetUserID(c); operator != "" {
			span.SetAttributes(attribute.String("wms.user_id", operator))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))

		// a 409 INSUFFICIENT_STOCK is an answer, not a failure of the service
		if code := GetErrorCode(c); code != "" {
			span.SetAttributes(attribute.String("wms.error_code", code))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, GetErrorCode(c))
		}
		for _, err := range c.Errors {
			span.RecordError(err.Err)
		}
	}
}
