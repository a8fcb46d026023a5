package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
)

// unprofiledPrefixes are health checks and docs, kept out of profiles
var unprofiledPrefixes = []string{"/health", "/ready", "/swagger"}

// ProfileLabels tags the CPU samples of each request with its method and
// route pattern. Unmatched paths are left unlabeled.
func ProfileLabels(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || skipProfiling(route) {
			c.Next()
			return
		}
		telemetry.WithProfileLabels(c.Request.Context(), telemetry.RouteLabels(c.Request.Method, route),
			func(ctx context.Context) {
				c.Request = c.Request.WithContext(ctx)
				c.Next()
			})
	}
}

func skipProfiling(route string) bool {
	for _, prefix := range unprofiledPrefixes {
		if strings.HasPrefix(route, prefix) {
			return true
		}
	}
	return false
}
