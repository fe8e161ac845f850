package model

import "time"

// Hold is a short-lived reservation that occupies a slot while a
// customer completes payment. An expired hold no longer counts in
// conflict checks even before the sweeper removes it.
type Hold struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id" validate:"required"`
	ResourceID string    `json:"resource_id" bson:"resource_id" validate:"required"`
	Start      time.Time `json:"start" bson:"start" validate:"required"`
	End        time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
	ExpiresAt  time.Time `json:"expires_at" bson:"expires_at" validate:"required"`
	// OwnerToken is returned to the client that created the hold and is
	// required to promote or release it.
	OwnerToken string `json:"owner_token,omitempty" bson:"owner_token"`
	// ReservationToken links the hold to the conflict guard's
	// reservation row.
	ReservationToken string    `json:"-" bson:"reservation_token"`
	Consumed         bool      `json:"consumed" bson:"consumed"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (h *Hold) Interval() Interval {
	return Interval{Start: h.Start, End: h.End}
}

func (h *Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// WaitlistEntry queues interest for an interval with no current
// capacity. Entries are ephemeral: removed on fulfillment or explicit
// cancellation.
type WaitlistEntry struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id" validate:"required"`
	ResourceID string    `json:"resource_id" bson:"resource_id" validate:"required"`
	Start      time.Time `json:"start" bson:"start" validate:"required"`
	End        time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
	CustomerID string    `json:"customer_id" bson:"customer_id" validate:"required"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (w *WaitlistEntry) Interval() Interval {
	return Interval{Start: w.Start, End: w.End}
}
