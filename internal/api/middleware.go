package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"swapScope/internal/metrics"
)

// observeRequests feeds the HTTP request counters. Unmatched requests keep
// their raw path since they never resolve to a route template.
func observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
