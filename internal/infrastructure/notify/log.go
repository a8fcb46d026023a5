package notify

import (
	"context"

	"github.com/returnflow/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogNotifier writes messages to the request logger. It is used when no
// webhook is configured.
type LogNotifier struct{}

// Send logs message at info level
func (LogNotifier) Send(ctx context.Context, message string) {
	logger.L(ctx).Info("notification", zap.String("message", message))
}
