package service

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/callback-engine/internal/models"
)

// KafkaEventPublisher emits payment.state.changed events keyed by
// reference id so all events for one payment land in order on one
// partition.
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(writer *kafka.Writer) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

func (p *KafkaEventPublisher) PublishStateChanged(ctx context.Context, event models.StateChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ReferenceID),
		Value: payload,
	})
}
