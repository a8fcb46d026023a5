package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"github.com/returnflow/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// AdminSecretHeader carries the confirmation secret for destructive operations
const AdminSecretHeader = "X-Admin-Secret"

// SecretChecker verifies a confirmation secret
type SecretChecker interface {
	Verify(secret string) error
}

// RequireAdminSecret guards undo, purge and maintenance routes. Requests
// without a matching X-Admin-Secret get 403 and never reach the handler.
func RequireAdminSecret(checker SecretChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var err error = shared.ErrInvalidSecret
		if checker != nil {
			err = checker.Verify(c.GetHeader(AdminSecretHeader))
		}
		if err == nil {
			c.Next()
			return
		}

		logger.L(c.Request.Context()).Warn("admin secret rejected",
			zap.String("route", c.FullPath()),
			zap.String("client_ip", c.ClientIP()),
		)

		code, message := dto.ErrCodeInvalidSecret, shared.ErrInvalidSecret.Message
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			code, message = dto.NormalizeErrorCode(domainErr.Code), domainErr.Message
		}
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(code, message, GetRequestID(c)))
	}
}
