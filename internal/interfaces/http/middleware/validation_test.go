package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transitionBody struct {
	Action         string `json:"action" binding:"required,return_action"`
	ExpectedStatus string `json:"expectedStatus" binding:"required,return_status"`
	Disposition    string `json:"disposition" binding:"omitempty,disposition"`
	Family         string `json:"family" binding:"omitempty,counter_family"`
}

func validationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req transitionBody
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return router
}

func post(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator_CustomTags(t *testing.T) {
	router := validationRouter(t)

	t.Run("accepts known values", func(t *testing.T) {
		w := post(router, `{"action":"ship_ncr","expectedStatus":"Requested","disposition":"RTV","family":"collection"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects unknown values with json field names", func(t *testing.T) {
		w := post(router, `{"action":"teleport","expectedStatus":"Lost","disposition":"Burn","family":"invoice"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Tag
		}
		assert.Equal(t, map[string]string{
			"action":         "return_action",
			"expectedStatus": "return_status",
			"disposition":    "disposition",
			"family":         "counter_family",
		}, fields)
	})

	t.Run("missing required fields", func(t *testing.T) {
		w := post(router, `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "This field is required")
	})

	t.Run("malformed json", func(t *testing.T) {
		w := post(router, `{"action":`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})
}
