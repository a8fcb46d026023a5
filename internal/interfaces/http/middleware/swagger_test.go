package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSwaggerAccess(t *testing.T) {
	serve := func(cfg SwaggerConfig, remote string) *httptest.ResponseRecorder {
		router := gin.New()
		router.GET("/swagger/*any", SwaggerAccess(cfg), func(c *gin.Context) {
			c.String(http.StatusOK, "docs")
		})
		req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	tests := []struct {
		name   string
		cfg    SwaggerConfig
		remote string
		want   int
	}{
		{"disabled", SwaggerConfig{}, "10.0.0.1:5000", http.StatusNotFound},
		{"open", SwaggerConfig{Enabled: true}, "203.0.113.9:5000", http.StatusOK},
		{"exact address", SwaggerConfig{Enabled: true, AllowIPs: []string{"10.0.0.1"}}, "10.0.0.1:5000", http.StatusOK},
		{"inside cidr", SwaggerConfig{Enabled: true, AllowIPs: []string{"bogus", "192.168.0.0/16"}}, "192.168.4.20:5000", http.StatusOK},
		{"outside list", SwaggerConfig{Enabled: true, AllowIPs: []string{"10.0.0.1", "192.168.0.0/16"}}, "203.0.113.9:5000", http.StatusForbidden},
		{"only bad entries", SwaggerConfig{Enabled: true, AllowIPs: []string{"bogus"}}, "10.0.0.1:5000", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.cfg, tt.remote)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := serve(SwaggerConfig{}, "10.0.0.1:5000")
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}
