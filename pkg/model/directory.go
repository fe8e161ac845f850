package model

import "time"

// Tenant is the isolation boundary. Every entity in the engine carries a
// tenant id and storage queries are always parameterized by it.
type Tenant struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"required"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	TimeZone  string    `json:"time_zone" bson:"time_zone" validate:"required,timezone"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Resource is a bookable entity (staff member or asset) against which
// the overlap invariant is enforced.
type Resource struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"required"`
	TenantID  string    `json:"tenant_id" bson:"tenant_id" validate:"required"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Service describes what is being booked: a duration plus optional
// pre/post buffer minutes that pad the reservation on either side.
type Service struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"required"`
	TenantID      string    `json:"tenant_id" bson:"tenant_id" validate:"required"`
	Name          string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	DurationMin   int       `json:"duration_min" bson:"duration_min" validate:"required,min=1,max=1440"`
	PreBufferMin  int       `json:"pre_buffer_min" bson:"pre_buffer_min" validate:"min=0,max=240"`
	PostBufferMin int       `json:"post_buffer_min" bson:"post_buffer_min" validate:"min=0,max=240"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMin) * time.Minute
}

func (s *Service) PreBuffer() time.Duration {
	return time.Duration(s.PreBufferMin) * time.Minute
}

func (s *Service) PostBuffer() time.Duration {
	return time.Duration(s.PostBufferMin) * time.Minute
}
