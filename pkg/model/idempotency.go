package model

import "time"

// IdempotencyRecord deduplicates booking-creation requests. One record
// exists per unique (tenant, key); replays with a matching request hash
// return the stored result, replays with a different hash are rejected.
type IdempotencyRecord struct {
	TenantID    string    `json:"tenant_id" bson:"tenant_id" validate:"required"`
	Key         string    `json:"key" bson:"key" validate:"required,min=1,max=200"`
	RequestHash string    `json:"request_hash" bson:"request_hash" validate:"required"`
	Result      []byte    `json:"result,omitempty" bson:"result,omitempty"`
	Completed   bool      `json:"completed" bson:"completed"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at" validate:"required"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
