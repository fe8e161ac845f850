package repository

import (
	"context"
	"sync"
	"time"

	"slotline/pkg/model"
)

// MemoryReservationStore keeps reservations in process memory with one
// mutex per (tenant, resource) pair. Valid for single-node deployments
// where all writers share the process.
type MemoryReservationStore struct {
	mu           sync.RWMutex
	reservations map[string]*model.Reservation

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		reservations: make(map[string]*model.Reservation),
		locks:        make(map[string]*sync.Mutex),
	}
}

func (s *MemoryReservationStore) resourceLock(tenantID, resourceID string) *sync.Mutex {
	key := tenantID + "/" + resourceID

	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func (s *MemoryReservationStore) WithResourceLock(ctx context.Context, tenantID, resourceID string, fn func(ctx context.Context) error) error {
	lock := s.resourceLock(tenantID, resourceID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (s *MemoryReservationStore) FindOverlapping(ctx context.Context, tenantID, resourceID string, interval model.Interval, now time.Time) ([]*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []*model.Reservation
	for _, r := range s.reservations {
		if r.TenantID != tenantID || r.ResourceID != resourceID {
			continue
		}
		if !r.Active(now) {
			continue
		}
		if r.Interval().Overlaps(interval) {
			found = append(found, r)
		}
	}
	return found, nil
}

func (s *MemoryReservationStore) ClearExpiryIfActive(ctx context.Context, tenantID, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[token]
	if !ok || r.TenantID != tenantID || !r.Active(now) {
		return ErrNotFound
	}

	r.ExpiresAt = time.Time{}
	return nil
}

func (s *MemoryReservationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for token, r := range s.reservations {
		if !r.ExpiresAt.IsZero() && !r.Active(now) {
			delete(s.reservations, token)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryReservationStore) Insert(ctx context.Context, reservation *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reservations[reservation.Token]; exists {
		return ErrDuplicateKey
	}

	copied := *reservation
	s.reservations[reservation.Token] = &copied
	return nil
}

func (s *MemoryReservationStore) Swap(ctx context.Context, tenantID, oldToken string, reservation *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.reservations[oldToken]
	if !ok || old.TenantID != tenantID {
		return ErrNotFound
	}
	if _, exists := s.reservations[reservation.Token]; exists {
		return ErrDuplicateKey
	}

	delete(s.reservations, oldToken)
	copied := *reservation
	s.reservations[reservation.Token] = &copied
	return nil
}

func (s *MemoryReservationStore) Delete(ctx context.Context, tenantID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[token]
	if !ok || r.TenantID != tenantID {
		return ErrNotFound
	}

	delete(s.reservations, token)
	return nil
}

func (s *MemoryReservationStore) Get(ctx context.Context, tenantID, token string) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[token]
	if !ok || r.TenantID != tenantID {
		return nil, ErrNotFound
	}

	copied := *r
	return &copied, nil
}
