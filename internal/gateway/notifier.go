package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"payment-service/internal/util"

	"go.uber.org/zap"
)

// Notifier delivers payment notifications to the notification service. Callers
// treat delivery as best-effort; a failure here never alters a finalized
// payment.
type Notifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewNotifier creates a notification client with a bounded request timeout
func NewNotifier(baseURL string, timeout time.Duration) *Notifier {
	return &Notifier{
		url:    baseURL + "/v1/notifications",
		client: &http.Client{Timeout: timeout},
		logger: util.GetLogger(),
	}
}

// Notify posts an opaque JSON payload and reports only delivery success
func (n *Notifier) Notify(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification service returned %d", resp.StatusCode)
	}

	n.logger.Debug("Notification delivered", zap.Int("status", resp.StatusCode))
	return nil
}
