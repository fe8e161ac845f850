package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	holderrors "slotline/internal/holds/errors"
	"slotline/pkg/model"
)

type MemoryHoldRepository struct {
	mu    sync.RWMutex
	holds map[string]*model.Hold
}

func NewMemoryHoldRepository() *MemoryHoldRepository {
	return &MemoryHoldRepository{
		holds: make(map[string]*model.Hold),
	}
}

func (r *MemoryHoldRepository) Create(ctx context.Context, hold *model.Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hold.ID == "" {
		hold.ID = uuid.New().String()
	}
	if hold.CreatedAt.IsZero() {
		hold.CreatedAt = time.Now().UTC()
	}
	copied := *hold
	r.holds[hold.ID] = &copied
	return nil
}

func (r *MemoryHoldRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hold, ok := r.holds[id]
	if !ok || hold.TenantID != tenantID {
		return nil, holderrors.ErrNotFound
	}
	copied := *hold
	return &copied, nil
}

func (r *MemoryHoldRepository) Consume(ctx context.Context, tenantID, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hold, ok := r.holds[id]
	if !ok || hold.TenantID != tenantID || hold.Consumed || hold.Expired(now) {
		return holderrors.ErrConsumeFailed
	}

	hold.Consumed = true
	return nil
}

func (r *MemoryHoldRepository) Delete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hold, ok := r.holds[id]
	if !ok || hold.TenantID != tenantID {
		return holderrors.ErrNotFound
	}
	delete(r.holds, id)
	return nil
}

func (r *MemoryHoldRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []*model.Hold
	for _, hold := range r.holds {
		if hold.Consumed || !hold.Expired(now) {
			continue
		}
		copied := *hold
		expired = append(expired, &copied)
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}
