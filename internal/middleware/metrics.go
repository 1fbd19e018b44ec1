package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emsd/school-billing-api/internal/service"
)

// Metrics records duration and status for every request against the route
// template, so /payments/:id aggregates as one series instead of one per id.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
