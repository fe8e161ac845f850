package service

import (
	"context"
	"errors"
	"time"

	"slotline/internal/events"
	"slotline/internal/waitlist/repository"
	"slotline/pkg/config"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/metrics"
	"slotline/pkg/model"
)

// WaitlistService queues interest for full intervals and fans out
// notification events when capacity opens up.
type WaitlistService interface {
	Join(ctx context.Context, entry *model.WaitlistEntry) error
	Leave(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID, resourceID string) ([]*model.WaitlistEntry, error)
	// NotifyReleased fulfills every entry overlapping the freed
	// interval: each gets a notification event and is removed.
	NotifyReleased(ctx context.Context, tenantID, resourceID string, interval model.Interval)
}

type waitlistService struct {
	repo      repository.WaitlistRepository
	publisher events.Publisher
	cfg       *config.Config
}

func NewWaitlistService(repo repository.WaitlistRepository, publisher events.Publisher, cfg *config.Config) WaitlistService {
	return &waitlistService{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *waitlistService) Join(ctx context.Context, entry *model.WaitlistEntry) error {
	if entry.TenantID == "" || entry.ResourceID == "" || entry.CustomerID == "" {
		return apperrors.InvalidInput("TenantID, ResourceID and CustomerID are required")
	}
	if !entry.Interval().IsValid() {
		return apperrors.InvalidInterval("Interval start must precede end")
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.cfg.Log.Error("Failed to create waitlist entry", "error", err)
		return apperrors.Internal("Failed to join waitlist", err)
	}

	s.cfg.Log.Info("Waitlist entry created",
		"id", entry.ID,
		"tenant_id", entry.TenantID,
		"resource_id", entry.ResourceID,
		"customer_id", entry.CustomerID,
	)
	return nil
}

func (s *waitlistService) Leave(ctx context.Context, tenantID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Waitlist entry ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundWithID("Waitlist entry", id)
		}
		if errors.Is(err, repository.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid waitlist entry ID format")
		}
		return apperrors.Internal("Failed to remove waitlist entry", err)
	}

	s.cfg.Log.Info("Waitlist entry removed", "id", id, "tenant_id", tenantID)
	return nil
}

func (s *waitlistService) List(ctx context.Context, tenantID, resourceID string) ([]*model.WaitlistEntry, error) {
	if tenantID == "" || resourceID == "" {
		return nil, apperrors.InvalidInput("TenantID and ResourceID are required")
	}

	entries, err := s.repo.ListByResource(ctx, tenantID, resourceID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list waitlist entries", err)
	}
	return entries, nil
}

// NotifyReleased is best-effort: a notification failure must never fail
// the release that triggered it. Errors are logged and the entry stays
// queued for the next release.
func (s *waitlistService) NotifyReleased(ctx context.Context, tenantID, resourceID string, interval model.Interval) {
	entries, err := s.repo.FindOverlapping(ctx, tenantID, resourceID, interval)
	if err != nil {
		s.cfg.Log.Error("Failed to look up waitlist for released slot",
			"tenant_id", tenantID,
			"resource_id", resourceID,
			"error", err,
		)
		return
	}

	for _, entry := range entries {
		event := events.Event{
			Type:      events.TypeWaitlistNotified,
			TenantID:  tenantID,
			Timestamp: time.Now().UTC(),
			Payload: map[string]any{
				"entry_id":    entry.ID,
				"resource_id": resourceID,
				"customer_id": entry.CustomerID,
				"start":       entry.Start,
				"end":         entry.End,
			},
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			continue
		}

		if err := s.repo.Delete(ctx, tenantID, entry.ID); err != nil {
			s.cfg.Log.Warn("Failed to remove fulfilled waitlist entry", "id", entry.ID, "error", err)
			continue
		}
		metrics.IncWaitlistFulfilled()

		s.cfg.Log.Info("Waitlist entry fulfilled",
			"id", entry.ID,
			"tenant_id", tenantID,
			"resource_id", resourceID,
			"customer_id", entry.CustomerID,
		)
	}
}
