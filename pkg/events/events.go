// Package events publishes audit events to Kafka. Publication is
// best-effort: failures are logged, never propagated to the operation that
// produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"inventario-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// Event types emitted by the services.
const (
	TypeScanRecorded     = "scan.recorded"
	TypeSessionCompleted = "session.completed"
	TypeFileStored       = "file.stored"
	TypeFileExpired      = "file.expired"
	TypeBatchGenerated   = "batch.generated"
)

// Event is the JSON envelope written to the topic.
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// Producer writes events to one topic. A nil Producer is a no-op, so
// disabled configurations need no branching at call sites.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a producer for the given brokers and topic.
func NewProducer(brokers, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish emits one event. Errors are logged and swallowed.
func (p *Producer) Publish(ctx context.Context, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	data, err := json.Marshal(Event{Type: eventType, OccurredAt: time.Now(), Payload: payload})
	if err != nil {
		log.Errorf("failed to marshal event %s: %v", eventType, err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		log.Errorf("failed to publish event %s: %v", eventType, err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
