// Package notify delivers operator-facing messages produced by the engine.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// WebhookNotifier posts each message as JSON to a webhook URL. Delivery runs in
// the background; failures are logged and never reach the caller.
type WebhookNotifier struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
	inflight   chan struct{}
}

type webhookPayload struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// NewWebhookNotifier creates a notifier posting to url
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebhookNotifier{
		url:     url,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:   logger.Named("notify"),
		inflight: make(chan struct{}, 16),
	}
}

// Send queues message for delivery. When too many deliveries are in flight the
// message is dropped and logged.
func (n *WebhookNotifier) Send(ctx context.Context, message string) {
	select {
	case n.inflight <- struct{}{}:
	default:
		n.logger.Warn("notification dropped, too many in flight", zap.String("message", message))
		return
	}

	go func() {
		defer func() { <-n.inflight }()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.post(sendCtx, message); err != nil {
			n.logger.Warn("notification delivery failed", zap.String("url", n.url), zap.Error(err))
		}
	}()
}

func (n *WebhookNotifier) post(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{Text: message, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Flush waits until in-flight deliveries finish or ctx is done
func (n *WebhookNotifier) Flush(ctx context.Context) error {
	for i := 0; i < cap(n.inflight); i++ {
		select {
		case n.inflight <- struct{}{}:
		case <-ctx.Done():
			for ; i > 0; i-- {
				<-n.inflight
			}
			return ctx.Err()
		}
	}
	for i := 0; i < cap(n.inflight); i++ {
		<-n.inflight
	}
	return nil
}
