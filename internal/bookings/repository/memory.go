package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	bookingerrors "slotline/internal/bookings/errors"
	"slotline/pkg/model"
)

type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[string]*model.Booking),
	}
}

func (r *MemoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	copied := *booking
	r.bookings[booking.ID] = &copied
	return nil
}

func (r *MemoryBookingRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, ok := r.bookings[id]
	if !ok || booking.TenantID != tenantID {
		return nil, bookingerrors.ErrNotFound
	}
	copied := *booking
	return &copied, nil
}

func (r *MemoryBookingRepository) UpdateStatus(ctx context.Context, tenantID, id, fromStatus, toStatus, cancelReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok || booking.TenantID != tenantID || booking.Status != fromStatus {
		return bookingerrors.ErrNotFound
	}

	booking.Status = toStatus
	if cancelReason != "" {
		booking.CancelReason = cancelReason
	}
	booking.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryBookingRepository) UpdateInterval(ctx context.Context, tenantID, id string, interval model.Interval, reservationToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok || booking.TenantID != tenantID {
		return bookingerrors.ErrNotFound
	}

	booking.Start = interval.Start
	booking.End = interval.End
	booking.ReservationToken = reservationToken
	booking.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryBookingRepository) ListByResource(ctx context.Context, tenantID, resourceID string, window model.Interval) ([]*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bookings []*model.Booking
	for _, booking := range r.bookings {
		if booking.TenantID != tenantID || booking.ResourceID != resourceID {
			continue
		}
		if !booking.Interval().Overlaps(window) {
			continue
		}
		copied := *booking
		bookings = append(bookings, &copied)
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].Start.Before(bookings[j].Start)
	})
	return bookings, nil
}

func (r *MemoryBookingRepository) ListByCustomer(ctx context.Context, tenantID, customerID string) ([]*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bookings []*model.Booking
	for _, booking := range r.bookings {
		if booking.TenantID != tenantID || booking.CustomerID != customerID {
			continue
		}
		copied := *booking
		bookings = append(bookings, &copied)
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].Start.After(bookings[j].Start)
	})
	return bookings, nil
}
