// Package middleware is the gin chain every API request runs through: panic
// recovery, request, correlation and operator ids, tracing, metrics, access
// logging and the JSON error contract.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

type Config struct {
	Logger         *logging.Logger
	Metrics        *metrics.Metrics
	ServiceName    string
	EnableCORS     bool
	EnableTracing  bool
	TrustedProxies []string
}

func DefaultConfig(serviceName string, logger *logging.Logger, m *metrics.Metrics) *Config {
	return &Config{
		Logger:        logger,
		Metrics:       m,
		ServiceName:   serviceName,
		EnableCORS:    true,
		EnableTracing: true,
	}
}

// Setup installs the chain on router. Order matters: ids are set before the
// span opens so the span and the access line carry them, and recovery wraps
// everything.
func Setup(router *gin.Engine, config *Config) {
	InitValidator()
	if len(config.TrustedProxies) > 0 {
		_ = router.SetTrustedProxies(config.TrustedProxies)
	}

	chain := []gin.HandlerFunc{
		Recovery(config.Logger),
		RequestID(),
		CorrelationID(),
		UserID(),
	}
	if config.EnableTracing {
		chain = append(chain, TracingMiddleware(DefaultTracingConfig(config.ServiceName)))
	}
	if config.Metrics != nil {
		chain = append(chain, MetricsMiddleware(config.Metrics))
	}
	chain = append(chain, Logger(config.Logger))
	if config.EnableCORS {
		chain = append(chain, CORS())
	}
	chain = append(chain, ContentType())
	router.Use(chain...)

	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, newErrorResponse(c, "ROUTE_NOT_FOUND", "The requested resource was not found", nil))
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, newErrorResponse(c, "METHOD_NOT_ALLOWED", "The request method is not supported for this resource", nil))
	})
}

const (
	corsAllowHeaders  = "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Correlation-ID, X-User-ID, Idempotency-Key"
	corsExposeHeaders = "X-Request-ID, X-Correlation-ID, Content-Disposition"
)

// CORS lets the warehouse web console call the API from its own origin.
// Content-Disposition is exposed for the route sheet download.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		h.Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
