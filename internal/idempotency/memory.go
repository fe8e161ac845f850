package idempotency

import (
	"context"
	"sync"
	"time"

	"slotline/pkg/metrics"
	"slotline/pkg/model"
)

// MemoryStore keeps idempotency records in process memory with periodic
// cleanup of expired entries. Valid for single-node deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*model.IdempotencyRecord
	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once

	// now is swappable in tests.
	now func() time.Time
}

func NewMemoryStore(retention, cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		records:   make(map[string]*model.IdempotencyRecord),
		retention: retention,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}

	go store.cleanup(cleanupInterval)

	return store
}

func recordKey(tenantID, key string) string {
	return tenantID + "/" + key
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for k, record := range s.records {
				if record.Expired(now) {
					delete(s.records, k)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *MemoryStore) CheckOrReserve(ctx context.Context, tenantID, key, requestHash string) (CheckResult, error) {
	now := s.now()
	k := recordKey(tenantID, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[k]
	if ok && !existing.Expired(now) {
		if existing.RequestHash != requestHash {
			return CheckResult{Outcome: OutcomeConflict}, nil
		}
		if !existing.Completed {
			return CheckResult{Outcome: OutcomeInProgress}, nil
		}
		metrics.IncIdempotencyReplay()
		return CheckResult{Outcome: OutcomeReplay, Result: existing.Result}, nil
	}

	s.records[k] = &model.IdempotencyRecord{
		TenantID:    tenantID,
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   now.Add(s.retention),
		CreatedAt:   now,
	}
	return CheckResult{Outcome: OutcomeNew}, nil
}

func (s *MemoryStore) Complete(ctx context.Context, tenantID, key string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordKey(tenantID, key)]
	if !ok {
		return ErrRecordNotFound
	}

	record.Result = result
	record.Completed = true
	return nil
}

func (s *MemoryStore) Forget(ctx context.Context, tenantID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, recordKey(tenantID, key))
	return nil
}
