package repository

import (
	"context"
	"errors"
	"time"

	"slotline/pkg/model"
)

var (
	ErrNotFound     = errors.New("reservation not found")
	ErrLockBusy     = errors.New("resource lock is held by another request")
	ErrDuplicateKey = errors.New("reservation token already exists")
)

// ReservationStore persists reservations and serializes writers per
// resource. WithResourceLock runs fn while no other writer for the same
// (tenant, resource) pair can run; reads and writes inside fn observe
// every reservation committed by earlier critical sections.
type ReservationStore interface {
	// FindOverlapping returns reservations intersecting interval that
	// are still active: permanent, or expiring later than now.
	FindOverlapping(ctx context.Context, tenantID, resourceID string, interval model.Interval, now time.Time) ([]*model.Reservation, error)
	Insert(ctx context.Context, reservation *model.Reservation) error
	Delete(ctx context.Context, tenantID, token string) error
	// Swap inserts reservation and removes oldToken as one atomic
	// write. Either both changes land or neither does.
	Swap(ctx context.Context, tenantID, oldToken string, reservation *model.Reservation) error
	Get(ctx context.Context, tenantID, token string) (*model.Reservation, error)
	// ClearExpiryIfActive makes an expiring reservation permanent,
	// failing with ErrNotFound if it is missing or already lapsed.
	ClearExpiryIfActive(ctx context.Context, tenantID, token string, now time.Time) error
	// DeleteExpired removes reservations whose expiry precedes now,
	// returning how many were reclaimed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	WithResourceLock(ctx context.Context, tenantID, resourceID string, fn func(ctx context.Context) error) error
}
