package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/granarylabs/granary/internal/config"
	"github.com/granarylabs/granary/internal/domain"
)

// Webhook posts pass summaries to an HTTP endpoint as JSON. Per-file events
// are not delivered over the webhook; they are part of the pass payload.
type Webhook struct {
	client *resty.Client
	url    string
}

// NewWebhook creates a webhook notifier
//
// Parameters:
//   - cfg: webhook configuration containing target URL and request timeout
//
// Returns:
//   - *Webhook: configured webhook notifier instance
func NewWebhook(cfg *config.WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")

	return &Webhook{
		client: client,
		url:    cfg.URL,
	}
}

// PassCompleted posts the pass result to the configured URL. Any status
// outside 2xx is reported as an error together with the response body.
func (w *Webhook) PassCompleted(ctx context.Context, result *domain.PassResult) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(result).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to post pass %s to webhook: %w", result.PassID, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d for pass %s: %s",
			resp.StatusCode(), result.PassID, resp.String())
	}

	return nil
}

// FileProcessed is a no-op for the webhook channel.
func (w *Webhook) FileProcessed(ctx context.Context, passID string, outcome *domain.FileOutcome) error {
	return nil
}

// Close releases the underlying HTTP client.
func (w *Webhook) Close() error {
	return nil
}
