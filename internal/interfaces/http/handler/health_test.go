package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func runHealth(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	h.Check(c)

	var body struct {
		Success bool           `json:"success"`
		Data    HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, w.Code == http.StatusOK, body.Success)
	return w.Code, body.Data
}

func TestHealthHandler_Check(t *testing.T) {
	ready := make(chan struct{})
	close(ready)

	t.Run("healthy", func(t *testing.T) {
		code, resp := runHealth(t, NewHealthHandler(pingFunc(func(context.Context) error { return nil }), ready))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp.Status)
		assert.NotEmpty(t, resp.GoVersion)
	})

	t.Run("store down", func(t *testing.T) {
		code, resp := runHealth(t, NewHealthHandler(pingFunc(func(context.Context) error {
			return shared.ErrStoreUnavailable
		}), ready))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "degraded", resp.Status)
		assert.Contains(t, resp.Store, "misconfigured")
	})

	t.Run("snapshot still loading", func(t *testing.T) {
		code, resp := runHealth(t, NewHealthHandler(nil, make(chan struct{})))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "starting", resp.Status)
		assert.False(t, resp.SnapshotReady)
	})
}
