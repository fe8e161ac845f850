package idempotency

import (
	"context"
	"errors"
)

// Outcome classifies what CheckOrReserve saw for a key.
type Outcome int

const (
	// OutcomeNew means the key was unseen; the caller owns the operation
	// and must call Complete or Forget.
	OutcomeNew Outcome = iota
	// OutcomeReplay means the same request already completed; serve the
	// stored result without re-executing.
	OutcomeReplay
	// OutcomeConflict means the key was reused with a different request
	// payload.
	OutcomeConflict
	// OutcomeInProgress means another in-flight request holds the key.
	OutcomeInProgress
)

var ErrRecordNotFound = errors.New("idempotency record not found")

type CheckResult struct {
	Outcome Outcome
	// Result is the stored response body, set only for OutcomeReplay.
	Result []byte
}

// Store tracks idempotency keys scoped per tenant. Records expire after
// the configured retention window, after which a key behaves as new.
type Store interface {
	// CheckOrReserve atomically claims the key for this request hash or
	// reports how the key was previously used.
	CheckOrReserve(ctx context.Context, tenantID, key, requestHash string) (CheckResult, error)
	// Complete stores the operation result against a claimed key.
	Complete(ctx context.Context, tenantID, key string, result []byte) error
	// Forget releases a claimed key so the operation can be retried,
	// used when the underlying operation failed.
	Forget(ctx context.Context, tenantID, key string) error
	Stop()
}
