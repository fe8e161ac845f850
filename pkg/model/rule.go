package model

import "time"

// AvailabilityRule is a recurring weekly open window for a resource,
// expressed in the tenant's local wall-clock time. LocalStart/LocalEnd
// use "HH:MM"; End strictly after Start is enforced at creation time.
type AvailabilityRule struct {
	ID         string       `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty"`
	TenantID   string       `json:"tenant_id" bson:"tenant_id" validate:"required"`
	ResourceID string       `json:"resource_id" bson:"resource_id" validate:"required"`
	Weekday    time.Weekday `json:"weekday" bson:"weekday" validate:"min=0,max=6"`
	LocalStart string       `json:"local_start" bson:"local_start" validate:"required,local_time"`
	LocalEnd   string       `json:"local_end" bson:"local_end" validate:"required,local_time"`
	// Until, when set, is the last civil date (inclusive) on which the
	// rule recurs, formatted "2006-01-02".
	Until     string    `json:"until,omitempty" bson:"until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// LocalWindow is a [start, end) pair of local wall-clock times.
type LocalWindow struct {
	Start string `json:"start" bson:"start" validate:"required,local_time"`
	End   string `json:"end" bson:"end" validate:"required,local_time"`
}

// AvailabilityException overrides the recurring rules for one civil date.
// An exception fully replaces the weekday's rule set for that date; an
// exception with no windows is a closure.
type AvailabilityException struct {
	ID         string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty"`
	TenantID   string        `json:"tenant_id" bson:"tenant_id" validate:"required"`
	ResourceID string        `json:"resource_id" bson:"resource_id" validate:"required"`
	Date       string        `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Windows    []LocalWindow `json:"windows" bson:"windows" validate:"omitempty,dive"`
	Reason     string        `json:"reason,omitempty" bson:"reason,omitempty" validate:"omitempty,max=200"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// IsClosure reports whether the exception removes all availability for
// its date.
func (e *AvailabilityException) IsClosure() bool {
	return len(e.Windows) == 0
}
