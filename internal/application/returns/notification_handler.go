package returns

import (
	"context"
	"fmt"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NotificationHandler turns engine events into operator chat messages
type NotificationHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifier Notifier, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{notifier: notifier, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		returns.EventTypeRecordCreated,
		returns.EventTypeStatusChanged,
		returns.EventTypeNCRSubmitted,
		returns.EventTypeNCRCanceled,
		returns.EventTypeReconcileCompleted,
	}
}

// Handle formats the event and hands it to the notifier without waiting for delivery
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	msg, ok := FormatNotification(event)
	if !ok {
		h.logger.Debug("no notification for event", zap.String("event_type", event.EventType()))
		return nil
	}
	h.notifier.Send(ctx, msg)
	return nil
}

// FormatNotification renders the chat message for an event
func FormatNotification(event shared.DomainEvent) (string, bool) {
	switch e := event.(type) {
	case *returns.RecordCreatedEvent:
		return fmt.Sprintf("New return %s: %s (doc %s) is %s", e.ReturnNo, e.Product, e.DocumentNo, e.Status), true
	case *returns.StatusChangedEvent:
		if e.Action == "undo" {
			return fmt.Sprintf("Record %s was moved back from %s to %s", e.AggregateID(), e.From, e.To), true
		}
		return fmt.Sprintf("Record %s: %s -> %s", e.AggregateID(), e.From, e.To), true
	case *returns.NCRSubmittedEvent:
		return fmt.Sprintf("New NCR %s: %s for %s, reported by %s", e.NCRNo, e.Product, e.Customer, e.Founder), true
	case *returns.NCRCanceledEvent:
		return fmt.Sprintf("NCR %s canceled, %d linked record(s) canceled", e.NCRNo, e.RecordsSynced), true
	case *returns.ReconcileCompletedEvent:
		return fmt.Sprintf("Maintenance %s finished: %d found, %d fixed, %d failed", e.Job, e.Found, e.Succeeded, e.Failed), true
	}
	return "", false
}
