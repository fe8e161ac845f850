package errors

import "errors"

var (
	ErrNotFound  = errors.New("hold not found")
	ErrInvalidID = errors.New("invalid hold ID format")
	// ErrConsumeFailed means the conditional consume matched nothing:
	// the hold was expired, already consumed, or removed.
	ErrConsumeFailed = errors.New("hold could not be consumed")
)
