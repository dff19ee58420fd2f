package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// WebhookNotifier posts operator alerts to a chat webhook. An empty webhook
// URL degrades to log-only delivery so local runs need no chat endpoint.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

func (n *WebhookNotifier) Notify(channel, text string) error {
	if n.webhookURL == "" {
		slog.Warn("alert webhook not configured, logging alert instead",
			"channel", channel, "text", text)
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    text,
	})
	if err != nil {
		return err
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("error occurred while closing alert response body", "error", closeErr.Error())
		}
	}()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	return nil
}
