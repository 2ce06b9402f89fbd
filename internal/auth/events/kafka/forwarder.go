// Package kafka relays domain events to Kafka as structured CloudEvents.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

const (
	specVersion = "1.0"
	contentType = "application/json"
)

// CloudEvent is the envelope written to the topic.
type CloudEvent struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	SpecVersion string    `json:"specversion"`
	Type        string    `json:"type"`
	Time        time.Time `json:"time"`
	Subject     string    `json:"subject,omitempty"`
	ContentType string    `json:"datacontenttype"`

	// Correlation id of the request that raised the event.
	RequestID string `json:"requestid,omitempty"`

	Data json.RawMessage `json:"data"`
}

// payload is the event body inside the envelope.
type payload struct {
	Data     map[string]any `json:"data"`
	Snapshot any            `json:"snapshot"`
}

// MessageWriter is the subset of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Forwarder implements events.Forwarder on top of a Kafka writer.
type Forwarder struct {
	writer MessageWriter
	source string
}

// NewWriter builds a synchronous writer that waits for all in-sync replicas.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
}

func NewForwarder(w MessageWriter, source string) *Forwarder {
	return &Forwarder{writer: w, source: source}
}

// Forward writes e keyed by its entity id so events of one aggregate stay
// ordered within a partition.
func (f *Forwarder) Forward(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(payload{Data: e.Data, Snapshot: e.Snapshot})
	if err != nil {
		return fmt.Errorf("kafka: marshal event data: %w", err)
	}

	ce := CloudEvent{
		ID:          uuid.New().String(),
		Source:      f.source,
		SpecVersion: specVersion,
		Type:        e.Name,
		Time:        e.OccurredAt.UTC(),
		Subject:     e.EntityID,
		ContentType: contentType,
		RequestID:   e.RequestID,
		Data:        body,
	}
	value, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("kafka: marshal cloud event: %w", err)
	}

	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.EntityID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "ce_id", Value: []byte(ce.ID)},
			{Key: "ce_source", Value: []byte(ce.Source)},
			{Key: "ce_specversion", Value: []byte(ce.SpecVersion)},
			{Key: "ce_type", Value: []byte(ce.Type)},
			{Key: "ce_time", Value: []byte(ce.Time.Format(time.RFC3339Nano))},
			{Key: "ce_subject", Value: []byte(ce.Subject)},
			{Key: "content-type", Value: []byte(contentType)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: write %s: %w", e.Name, err)
	}

	slogx.FromContext(ctx).Debug("event forwarded", "event", e.Name, "entity_id", e.EntityID, "ce_id", ce.ID)
	return nil
}

func (f *Forwarder) Close() error {
	return f.writer.Close()
}
