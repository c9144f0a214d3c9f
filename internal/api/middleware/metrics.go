package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver records request latency. Implemented by metrics.Recorder.
type HTTPObserver interface {
	ObserveHTTP(route, status string, d time.Duration)
}

// MetricsMiddleware times every request and reports it under the matched
// route template, or "unmatched" for 404s.
func MetricsMiddleware(obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.ObserveHTTP(route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
