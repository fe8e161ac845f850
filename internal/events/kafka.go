package events

import (
	"context"

	"slotline/pkg/kafka"
	"slotline/pkg/logger"
)

const sourceName = "slotline-engine"

// KafkaPublisher writes events to the booking events topic, keyed by
// tenant so per-tenant ordering survives partitioning.
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg := kafka.NewMessage().
		WithKey(event.TenantID).
		WithValue(event).
		WithEventType(event.Type).
		WithTenantID(event.TenantID).
		WithSource(sourceName).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish event",
			"type", event.Type,
			"tenant_id", event.TenantID,
			"booking_id", event.BookingID,
			"error", err,
		)
		return err
	}

	p.log.Debug("Event published",
		"type", event.Type,
		"tenant_id", event.TenantID,
		"booking_id", event.BookingID,
		"hold_id", event.HoldID,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
