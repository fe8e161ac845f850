package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	availerrors "slotline/internal/availability/errors"
	"slotline/pkg/model"
)

// MemoryRuleRepository is an in-process rule store for single-node
// deployments and tests.
type MemoryRuleRepository struct {
	mu         sync.RWMutex
	rules      map[string]*model.AvailabilityRule
	exceptions map[string]*model.AvailabilityException
}

func NewMemoryRuleRepository() *MemoryRuleRepository {
	return &MemoryRuleRepository{
		rules:      make(map[string]*model.AvailabilityRule),
		exceptions: make(map[string]*model.AvailabilityException),
	}
}

func (r *MemoryRuleRepository) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	copied := *rule
	r.rules[rule.ID] = &copied
	return nil
}

func (r *MemoryRuleRepository) DeleteRule(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[id]
	if !ok || rule.TenantID != tenantID {
		return availerrors.ErrNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *MemoryRuleRepository) ListRules(ctx context.Context, tenantID, resourceID string) ([]*model.AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []*model.AvailabilityRule
	for _, rule := range r.rules {
		if rule.TenantID == tenantID && rule.ResourceID == resourceID {
			copied := *rule
			rules = append(rules, &copied)
		}
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		return rules[i].LocalStart < rules[j].LocalStart
	})
	return rules, nil
}

func (r *MemoryRuleRepository) CreateException(ctx context.Context, exc *model.AvailabilityException) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if exc.ID == "" {
		exc.ID = uuid.New().String()
	}
	copied := *exc
	r.exceptions[exc.ID] = &copied
	return nil
}

func (r *MemoryRuleRepository) DeleteException(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exc, ok := r.exceptions[id]
	if !ok || exc.TenantID != tenantID {
		return availerrors.ErrNotFound
	}
	delete(r.exceptions, id)
	return nil
}

func (r *MemoryRuleRepository) ListExceptions(ctx context.Context, tenantID, resourceID, fromDate, toDate string) ([]*model.AvailabilityException, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exceptions []*model.AvailabilityException
	for _, exc := range r.exceptions {
		if exc.TenantID != tenantID || exc.ResourceID != resourceID {
			continue
		}
		if exc.Date < fromDate || exc.Date > toDate {
			continue
		}
		copied := *exc
		exceptions = append(exceptions, &copied)
	}

	sort.Slice(exceptions, func(i, j int) bool {
		return exceptions[i].Date < exceptions[j].Date
	})
	return exceptions, nil
}
