package events

import (
	"context"
	"fmt"

	"cuworking/pkg/kafka"
	"cuworking/pkg/middleware"
	"cuworking/pkg/model"
)

const (
	Source        = "cuworking"
	SchemaVersion = "1"
)

type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher turns reservation events into Kafka messages keyed by
// place id, so every event of one place lands on the same partition in
// commit order.
type KafkaPublisher struct {
	producer MessagePublisher
}

func NewKafkaPublisher(producer MessagePublisher) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event model.ReservationEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.PlaceID).
		WithValue(event).
		WithEventType(event.EventType).
		WithSource(Source).
		WithSchemaVersion(SchemaVersion).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s message: %w", event.EventType, err)
	}

	return p.producer.Publish(ctx, msg)
}

// NoopPublisher drops events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.ReservationEvent) error {
	return nil
}
