package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 3 * time.Second

// HealthCheck is the liveness probe. It never touches dependencies.
func HealthCheck(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	}
}

// ReadinessCheck runs the named dependency checks in parallel under one
// deadline and answers 503 when any of them fails.
func ReadinessCheck(serviceName string, checks map[string]func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]string, len(checks))
			failed  bool
		)
		for name, check := range checks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := check(ctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					results[name] = err.Error()
					failed = true
					return
				}
				results[name] = "ok"
			}()
		}
		wg.Wait()

		status, text := http.StatusOK, "ready"
		if failed {
			status, text = http.StatusServiceUnavailable, "not ready"
		}
		c.JSON(status, gin.H{"status": text, "service": serviceName, "checks": results})
	}
}
