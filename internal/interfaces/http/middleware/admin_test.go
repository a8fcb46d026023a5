package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker string

func (s staticChecker) Verify(secret string) error {
	if secret == "" || secret != string(s) {
		return shared.ErrInvalidSecret
	}
	return nil
}

func TestRequireAdminSecret(t *testing.T) {
	newRouter := func(checker SecretChecker) *gin.Engine {
		router := gin.New()
		router.Use(RequestID())
		router.POST("/purge", RequireAdminSecret(checker), func(c *gin.Context) {
			c.String(http.StatusOK, "purged")
		})
		return router
	}

	t.Run("passes with the right secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/purge", nil)
		req.Header.Set(AdminSecretHeader, "s3cret")
		w := httptest.NewRecorder()
		newRouter(staticChecker("s3cret")).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "purged", w.Body.String())
	})

	for name, header := range map[string]string{"wrong secret": "nope", "missing secret": ""} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/purge", nil)
			if header != "" {
				req.Header.Set(AdminSecretHeader, header)
			}
			w := httptest.NewRecorder()
			newRouter(staticChecker("s3cret")).ServeHTTP(w, req)

			require.Equal(t, http.StatusForbidden, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, dto.ErrCodeInvalidSecret, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}

	t.Run("no checker rejects everything", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/purge", nil)
		req.Header.Set(AdminSecretHeader, "anything")
		w := httptest.NewRecorder()
		newRouter(nil).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
