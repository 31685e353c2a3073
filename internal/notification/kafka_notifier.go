package notification

import (
	"context"
	"fmt"

	"github.com/dumu-waks/service-booking/internal/events"
	"github.com/dumu-waks/service-booking/pkg/kafka"
)

// eventSource identifies this service in CloudEvent envelopes.
const eventSource = "dumu-waks/service-booking"

// KafkaNotifier publishes booking lifecycle events to Kafka wrapped in
// CloudEvent envelopes, keyed by booking ID so events for one booking stay
// ordered within a partition.
type KafkaNotifier struct {
	producer *kafka.Producer
}

// NewKafkaNotifier creates a new KafkaNotifier.
func NewKafkaNotifier(producer *kafka.Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

// Notify publishes the payload to the booking events topic.
func (n *KafkaNotifier) Notify(ctx context.Context, eventType, key string, payload interface{}) error {
	ce, err := kafka.NewCloudEvent(eventSource, eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to build event envelope: %w", err)
	}
	return n.producer.Publish(ctx, events.TopicBookingEvents, key, ce)
}
