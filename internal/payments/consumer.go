package payments

import (
	"context"
	"fmt"

	bookingservice "slotline/internal/bookings/service"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/kafka"
	kafka_config "slotline/pkg/kafka/config"
	"slotline/pkg/logger"
	"slotline/pkg/model"
)

const (
	Topic    = "payment-results"
	GroupID  = "slotline-engine"
	DLQTopic = "payment-results-dlq"
)

// Consumer applies payment outcomes from the payment collaborator to
// pending bookings. Messages must carry the tenant id header set by
// the producer.
type Consumer struct {
	consumer *kafka.Consumer
	bookings bookingservice.BookingService
	log      *logger.Logger
}

func NewConsumer(cfg *kafka_config.Config, bookings bookingservice.BookingService, log *logger.Logger) (*Consumer, error) {
	c := &Consumer{
		bookings: bookings,
		log:      log,
	}

	consumer, err := kafka.NewConsumer(cfg, Topic, GroupID, DLQTopic, c.handleMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment consumer: %w", err)
	}
	c.consumer = consumer
	return c, nil
}

// Start blocks consuming payment results until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("Payment consumer starting", "topic", Topic, "group_id", GroupID)
	return c.consumer.Start(ctx)
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	tenantID := msg.GetTenantID()
	if tenantID == "" {
		// Unroutable without a tenant; retrying cannot help, let the
		// dead-letter path take it.
		return fmt.Errorf("payment result missing tenant id header")
	}

	var result model.PaymentResult
	if err := msg.DecodeValue(&result); err != nil {
		return fmt.Errorf("failed to decode payment result: %w", err)
	}

	booking, err := c.bookings.Confirm(ctx, tenantID, result)
	if err != nil {
		// The booking may have been canceled or rescheduled while the
		// payment was in flight. That is a resolved race, not a
		// processing failure worth retrying.
		if apperrors.HasCode(err, apperrors.CodeNotFound) || apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
			c.log.Warn("Payment result ignored, booking no longer pending",
				"booking_id", result.BookingID,
				"tenant_id", tenantID,
				"error", err,
			)
			return nil
		}
		return err
	}

	c.log.Info("Payment result applied",
		"booking_id", booking.ID,
		"tenant_id", tenantID,
		"status", booking.Status,
	)
	return nil
}
