package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/models"
)

// WebhookType marks what kind of send a webhook notification reports.
type WebhookType string

const (
	WebhookSend    WebhookType = "SEND"
	WebhookSendAll WebhookType = "SEND_ALL"
)

// WebhookPayload describes one completed send to the destination
// service: the requested user ids (empty for broadcast), the message
// content, and the message ids the transport produced.
type WebhookPayload struct {
	UserIDs    []string        `json:"userIds"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Category   models.Category `json:"category"`
	DeepLink   string          `json:"deepLink,omitempty"`
	WebLink    string          `json:"webLink,omitempty"`
	MessageIDs []string        `json:"messageIds"`
	Type       WebhookType     `json:"type"`
}

// WebhookService notifies the ordering service's receiver after a
// completed send. Only app and operation run receivers; the other
// services are no-ops. Errors return to the dispatcher, which logs them
// without unwinding the already-completed send.
type WebhookService struct {
	client *http.Client
	cfg    *config.Config
}

// NewWebhookService builds a webhook notifier with a bounded timeout.
func NewWebhookService(cfg *config.Config) *WebhookService {
	return &WebhookService{
		client: &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
	}
}

// NotifySendSuccess posts the payload to the receiver registered for the
// given ordering service, if any.
func (w *WebhookService) NotifySendSuccess(ctx context.Context, service models.Service, payload WebhookPayload) error {
	var url string
	switch service {
	case models.ServiceApp:
		url = w.cfg.AppWebhookURL
	case models.ServiceOperation:
		url = w.cfg.OperationWebhookURL
	default:
		return nil
	}
	if url == "" {
		return fmt.Errorf("no webhook url configured for service %q", service)
	}
	return w.postJSON(ctx, url, payload)
}

func (w *WebhookService) postJSON(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
