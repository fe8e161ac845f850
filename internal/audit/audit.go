package audit

import (
	"context"
	"time"
)

// Entry records one lifecycle change. Entries are append-only.
type Entry struct {
	TenantID   string         `json:"tenant_id" bson:"tenant_id"`
	EntityType string         `json:"entity_type" bson:"entity_type"`
	EntityID   string         `json:"entity_id" bson:"entity_id"`
	Actor      string         `json:"actor" bson:"actor"`
	Action     string         `json:"action" bson:"action"`
	Before     string         `json:"before,omitempty" bson:"before,omitempty"`
	After      string         `json:"after,omitempty" bson:"after,omitempty"`
	Details    map[string]any `json:"details,omitempty" bson:"details,omitempty"`
	At         time.Time      `json:"at" bson:"at"`
}

type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// NopSink discards entries. Used in tests.
type NopSink struct{}

func (NopSink) Record(ctx context.Context, entry Entry) error { return nil }
