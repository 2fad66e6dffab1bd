package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// probe endpoints are scraped every few seconds and would drown the API series
var probePaths = map[string]bool{"/health": true, "/ready": true, "/metrics": true}

// MetricsMiddleware records latency and status per route template. Error
// responses are additionally counted by their API error code, so rejections
// such as INSUFFICIENT_STOCK or WRONG_BARCODE show up as their own series.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if probePaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		m.IncrementHTTPRequestsInFlight()
		defer m.DecrementHTTPRequestsInFlight()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		if code := GetErrorCode(c); code != "" {
			m.RecordHTTPError(route, code)
		}
	}
}

// MetricsEndpoint serves the private registry
func MetricsEndpoint(m *metrics.Metrics) gin.HandlerFunc {
	return gin.WrapH(m.Handler())
}
