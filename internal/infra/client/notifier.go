// Package client contains HTTP clients for external services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

// PushNotifier posts notification events to the push gateway that fans
// them out to the family's registered devices. Delivery is best-effort:
// callers log failures and move on.
type PushNotifier struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewPushNotifier creates a PushNotifier. An empty baseURL disables
// delivery (Notify becomes a no-op), which is the local-dev default.
func NewPushNotifier(httpClient *http.Client, baseURL string, logger *zap.Logger) *PushNotifier {
	return &PushNotifier{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Notify sends one event to the push gateway. No retries and no circuit
// breaker: a dropped notification is acceptable, a delayed money request
// approval is not.
func (n *PushNotifier) Notify(ctx context.Context, familyID, event string, payload map[string]any) error {
	ctx, span := tracer.Start(ctx, "PushNotifier.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("event", event))

	if n.baseURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"family_id": familyID,
		"event":     event,
		"payload":   payload,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/notifications", n.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("notifier: delivery failed",
			zap.String("event", event),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("notifier: gateway returned non-2xx",
			zap.String("event", event),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}
	return nil
}
