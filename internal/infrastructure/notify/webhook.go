package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// WebhookNotifier POSTs each event as JSON to a configured URL.
// Delivery is best-effort: the orchestrator logs failures and moves on.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type webhookPayload struct {
	Type     string  `json:"type"`
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Reason   string  `json:"reason,omitempty"`
	Error    string  `json:"error,omitempty"`
	Ts       string  `json:"ts"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, ev model.Event) error {
	body, err := json.Marshal(webhookPayload{
		Type:     ev.Type,
		Symbol:   ev.Symbol,
		Action:   string(ev.Action),
		Quantity: ev.Quantity,
		Price:    ev.Price,
		Reason:   ev.Reason,
		Error:    ev.Error,
		Ts:       time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NoopNotifier is used when no webhook is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, ev model.Event) error { return nil }

var (
	_ port.Notifier = (*WebhookNotifier)(nil)
	_ port.Notifier = NoopNotifier{}
)
