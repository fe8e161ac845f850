package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotline/pkg/model"
)

type MemoryWaitlistRepository struct {
	mu      sync.RWMutex
	entries map[string]*model.WaitlistEntry
}

func NewMemoryWaitlistRepository() *MemoryWaitlistRepository {
	return &MemoryWaitlistRepository{
		entries: make(map[string]*model.WaitlistEntry),
	}
}

func (r *MemoryWaitlistRepository) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

func (r *MemoryWaitlistRepository) Delete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok || entry.TenantID != tenantID {
		return ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *MemoryWaitlistRepository) FindOverlapping(ctx context.Context, tenantID, resourceID string, interval model.Interval) ([]*model.WaitlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*model.WaitlistEntry
	for _, entry := range r.entries {
		if entry.TenantID != tenantID || entry.ResourceID != resourceID {
			continue
		}
		if entry.Interval().Overlaps(interval) {
			copied := *entry
			found = append(found, &copied)
		}
	}
	sortByCreation(found)
	return found, nil
}

func (r *MemoryWaitlistRepository) ListByResource(ctx context.Context, tenantID, resourceID string) ([]*model.WaitlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*model.WaitlistEntry
	for _, entry := range r.entries {
		if entry.TenantID == tenantID && entry.ResourceID == resourceID {
			copied := *entry
			found = append(found, &copied)
		}
	}
	sortByCreation(found)
	return found, nil
}

func sortByCreation(entries []*model.WaitlistEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
