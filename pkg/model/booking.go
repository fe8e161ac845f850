package model

import "time"

// Booking statuses. A booking is never physically deleted: canceled and
// no-show rows are retained for audit and analytics collaborators.
const (
	StatusHeld      = "held"
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusNoShow    = "no_show"
)

// ActiveStatuses are the booking states that participate in conflict
// checks. Canceled and no-show bookings release their interval.
var ActiveStatuses = []string{StatusHeld, StatusPending, StatusConfirmed, StatusCompleted}

func IsActiveStatus(status string) bool {
	switch status {
	case StatusHeld, StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

type Booking struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id" validate:"required"`
	ResourceID string    `json:"resource_id" bson:"resource_id" validate:"required"`
	ServiceID  string    `json:"service_id" bson:"service_id" validate:"required"`
	CustomerID string    `json:"customer_id" bson:"customer_id" validate:"required"`
	Start      time.Time `json:"start" bson:"start" validate:"required"`
	End        time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
	Status     string    `json:"status" bson:"status" validate:"required,oneof=held pending confirmed completed canceled no_show"`
	// ReservationToken links the booking to its row in the conflict
	// guard's reservation set while the booking is active.
	ReservationToken string    `json:"-" bson:"reservation_token,omitempty"`
	IdempotencyKey   string    `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	CancelReason     string    `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// PaymentResult is the contract the payment collaborator reports back
// after a pending booking was created.
type PaymentResult struct {
	BookingID string `json:"booking_id" validate:"required"`
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// BookingDraft is what a promoted hold yields: the slot is already
// reserved under ReservationToken, so booking creation from a draft
// skips the conflict guard.
type BookingDraft struct {
	TenantID         string   `json:"tenant_id"`
	ResourceID       string   `json:"resource_id"`
	Interval         Interval `json:"interval"`
	ReservationToken string   `json:"-"`
	HoldID           string   `json:"hold_id"`
}
