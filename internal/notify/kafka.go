package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/granarylabs/granary/internal/config"
	"github.com/granarylabs/granary/internal/domain"
)

const (
	eventSource   = "granary"
	eventTypePass = "pass.completed"
	eventTypeFile = "file.processed"
)

// Event is the envelope written to the Kafka topic for every notification.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Kafka publishes file outcomes and pass summaries to a Kafka topic.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a Kafka notifier
//
// Parameters:
//   - cfg: Kafka configuration containing broker addresses and topic name
//
// Returns:
//   - *Kafka: configured Kafka notifier instance
func NewKafka(cfg *config.KafkaConfig) *Kafka {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Kafka{writer: writer}
}

// PassCompleted publishes a pass summary event keyed by the pass ID.
func (k *Kafka) PassCompleted(ctx context.Context, result *domain.PassResult) error {
	return k.publish(ctx, result.PassID, passEvent(result))
}

// FileProcessed publishes a file outcome event keyed by the file path, so
// events for the same file always land on the same partition.
func (k *Kafka) FileProcessed(ctx context.Context, passID string, outcome *domain.FileOutcome) error {
	return k.publish(ctx, outcome.Path, fileEvent(passID, outcome))
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func (k *Kafka) publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func passEvent(result *domain.PassResult) Event {
	return Event{
		ID:     uuid.New().String(),
		Type:   eventTypePass,
		Source: eventSource,
		Data: map[string]interface{}{
			"pass_id":       result.PassID,
			"total":         result.Total,
			"succeeded":     result.Succeeded,
			"partial":       result.Partial,
			"failed":        result.Failed,
			"skipped":       result.Skipped,
			"rows_imported": result.RowsImported,
			"duration_ms":   result.Duration().Milliseconds(),
		},
		Timestamp: time.Now(),
	}
}

func fileEvent(passID string, outcome *domain.FileOutcome) Event {
	return Event{
		ID:     uuid.New().String(),
		Type:   eventTypeFile,
		Source: eventSource,
		Data: map[string]interface{}{
			"pass_id":       passID,
			"path":          outcome.Path,
			"status":        string(outcome.Status),
			"tables":        len(outcome.Tables),
			"rows_imported": outcome.RowsImported,
			"error":         outcome.ErrorMessage,
		},
		Timestamp: time.Now(),
	}
}
