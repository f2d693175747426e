package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/service"
)

// Metrics records per-request timings into the metrics service.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		// Unmatched routes share one label to keep metric cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
