package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
)

func TestProfileLabels(t *testing.T) {
	labelsOf := func(enabled bool, route, path string) (string, string) {
		var gotRoute, gotMethod string
		router := gin.New()
		router.Use(ProfileLabels(enabled))
		router.GET(route, func(c *gin.Context) {
			gotRoute, _ = pprof.Label(c.Request.Context(), telemetry.ProfileLabelRoute)
			gotMethod, _ = pprof.Label(c.Request.Context(), telemetry.ProfileLabelMethod)
			c.Status(http.StatusNoContent)
		})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		return gotRoute, gotMethod
	}

	route, method := labelsOf(true, "/api/v1/return-records/:id", "/api/v1/return-records/RT-1")
	assert.Equal(t, "/api/v1/return-records/:id", route, "the pattern, not the record id")
	assert.Equal(t, http.MethodGet, method)

	route, _ = labelsOf(true, "/health", "/health")
	assert.Empty(t, route)

	route, _ = labelsOf(false, "/api/v1/ncr-reports", "/api/v1/ncr-reports")
	assert.Empty(t, route)
}
