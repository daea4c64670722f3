package notify

import (
	"context"

	"github.com/granarylabs/granary/internal/config"
	"github.com/granarylabs/granary/internal/domain"
)

// Notifier receives ingestion outcomes as they happen. Implementations must
// tolerate being called from the scheduler's pass goroutine; a failed
// notification is reported to the caller but never fails the pass itself.
type Notifier interface {
	// PassCompleted is called once per finished pass with the aggregated
	// result, including per-file outcomes.
	PassCompleted(ctx context.Context, result *domain.PassResult) error

	// FileProcessed is called once per file that reached a terminal status
	// during the pass identified by passID.
	FileProcessed(ctx context.Context, passID string, outcome *domain.FileOutcome) error

	// Close releases any connections held by the notifier.
	Close() error
}

// NewFromConfig builds the set of enabled notifiers. The returned slice is
// empty when no notification channel is configured.
func NewFromConfig(cfg *config.NotifyConfig) []Notifier {
	var notifiers []Notifier
	if cfg.Webhook.Enabled {
		notifiers = append(notifiers, NewWebhook(&cfg.Webhook))
	}
	if cfg.Kafka.Enabled {
		notifiers = append(notifiers, NewKafka(&cfg.Kafka))
	}
	return notifiers
}
