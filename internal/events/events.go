package events

import (
	"context"
	"time"
)

const (
	TypeBookingPending   = "booking.pending"
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCanceled  = "booking.canceled"
	TypeBookingCompleted = "booking.completed"
	TypeBookingNoShow    = "booking.no_show"
	TypeHoldCreated      = "hold.created"
	TypeHoldExpired      = "hold.expired"
	TypeHoldPromoted     = "hold.promoted"
	TypeSlotReleased     = "slot.released"
	TypeWaitlistNotified = "waitlist.notified"
)

// Event is the envelope published to the booking events topic.
type Event struct {
	Type      string         `json:"type"`
	TenantID  string         `json:"tenant_id"`
	BookingID string         `json:"booking_id,omitempty"`
	HoldID    string         `json:"hold_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards events. Used when no broker is configured and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
