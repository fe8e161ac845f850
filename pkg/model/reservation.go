package model

import "time"

// Reservation is a claim on a resource for a half-open time interval.
// Holds and bookings both claim their slot through a reservation, so
// the overlap invariant is enforced in one place.
type Reservation struct {
	Token      string    `json:"token" bson:"_id"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	ResourceID string    `json:"resource_id" bson:"resource_id"`
	Start      time.Time `json:"start" bson:"start"`
	End        time.Time `json:"end" bson:"end"`
	// ExpiresAt bounds hold-backed reservations; the zero value means
	// the reservation is permanent. Expired reservations do not count
	// in conflict checks even before the sweeper removes them.
	ExpiresAt time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (r *Reservation) Active(now time.Time) bool {
	return r.ExpiresAt.IsZero() || now.Before(r.ExpiresAt)
}

func (r *Reservation) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}
