package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	conflictservice "slotline/internal/conflict/service"
	"slotline/internal/events"
	holderrors "slotline/internal/holds/errors"
	"slotline/internal/holds/repository"
	waitlistservice "slotline/internal/waitlist/service"
	"slotline/pkg/config"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/metrics"
	"slotline/pkg/model"
)

// CreateHoldRequest describes a provisional claim on a slot. TTL of
// zero falls back to the configured default.
type CreateHoldRequest struct {
	TenantID   string
	ResourceID string
	Interval   model.Interval
	TTL        time.Duration
}

type HoldService interface {
	Create(ctx context.Context, req CreateHoldRequest) (*model.Hold, error)
	Get(ctx context.Context, tenantID, id string) (*model.Hold, error)
	// Release frees the hold's slot. The caller must present the owner
	// token issued at creation.
	Release(ctx context.Context, tenantID, id, ownerToken string) error
	// Promote converts a still-valid hold into a booking draft whose
	// reservation no longer expires. Exactly one promotion per hold can
	// succeed.
	Promote(ctx context.Context, tenantID, id, ownerToken string) (*model.BookingDraft, error)
	// Sweep reclaims expired holds, publishing expiry events and waking
	// overlapping waitlist entries. Returns how many were reclaimed.
	Sweep(ctx context.Context) (int, error)
}

type holdService struct {
	repo      repository.HoldRepository
	guard     conflictservice.Guard
	waitlist  waitlistservice.WaitlistService
	publisher events.Publisher
	cfg       *config.Config

	// now is swappable in tests.
	now func() time.Time
}

func NewHoldService(
	repo repository.HoldRepository,
	guard conflictservice.Guard,
	waitlist waitlistservice.WaitlistService,
	publisher events.Publisher,
	cfg *config.Config,
) HoldService {
	return &holdService{
		repo:      repo,
		guard:     guard,
		waitlist:  waitlist,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *holdService) Create(ctx context.Context, req CreateHoldRequest) (*model.Hold, error) {
	if req.TenantID == "" || req.ResourceID == "" {
		return nil, apperrors.InvalidInput("TenantID and ResourceID are required")
	}
	if !req.Interval.IsValid() {
		return nil, apperrors.InvalidInterval("Interval start must precede end")
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = s.cfg.DefaultHoldTTL
	}
	if ttl < 0 {
		return nil, apperrors.InvalidInput("Hold TTL cannot be negative")
	}
	if ttl > s.cfg.MaxHoldTTL {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Hold TTL exceeds maximum of %s", s.cfg.MaxHoldTTL))
	}

	expiresAt := s.now().Add(ttl)

	token, err := s.guard.Reserve(ctx, conflictservice.ReserveRequest{
		TenantID:   req.TenantID,
		ResourceID: req.ResourceID,
		Interval:   req.Interval,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return nil, err
	}

	hold := &model.Hold{
		TenantID:         req.TenantID,
		ResourceID:       req.ResourceID,
		Start:            req.Interval.Start,
		End:              req.Interval.End,
		ExpiresAt:        expiresAt,
		OwnerToken:       uuid.New().String(),
		ReservationToken: token,
	}
	if err := s.repo.Create(ctx, hold); err != nil {
		// Roll the reservation back so the failed hold does not occupy
		// the slot until its TTL lapses.
		if relErr := s.guard.Release(ctx, req.TenantID, token); relErr != nil {
			s.cfg.Log.Warn("Failed to roll back reservation for failed hold", "token", token, "error", relErr)
		}
		s.cfg.Log.Error("Failed to create hold", "error", err)
		return nil, apperrors.Internal("Failed to create hold", err)
	}

	s.publish(ctx, events.Event{
		Type:      events.TypeHoldCreated,
		TenantID:  hold.TenantID,
		HoldID:    hold.ID,
		Timestamp: s.now().UTC(),
		Payload: map[string]any{
			"resource_id": hold.ResourceID,
			"start":       hold.Start,
			"end":         hold.End,
			"expires_at":  hold.ExpiresAt,
		},
	})

	s.cfg.Log.Info("Hold created",
		"id", hold.ID,
		"tenant_id", hold.TenantID,
		"resource_id", hold.ResourceID,
		"expires_at", hold.ExpiresAt,
	)
	return hold, nil
}

func (s *holdService) Get(ctx context.Context, tenantID, id string) (*model.Hold, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Hold ID cannot be empty")
	}

	hold, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, s.translateLookupError(err, id)
	}
	return hold, nil
}

func (s *holdService) Release(ctx context.Context, tenantID, id, ownerToken string) error {
	hold, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return s.translateLookupError(err, id)
	}
	if hold.OwnerToken != ownerToken {
		return apperrors.NotFoundWithID("Hold", id)
	}
	if hold.Consumed {
		return apperrors.HoldConsumed(id)
	}

	if err := s.guard.Release(ctx, tenantID, hold.ReservationToken); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil && !errors.Is(err, holderrors.ErrNotFound) {
		return apperrors.Internal("Failed to delete hold", err)
	}

	s.publish(ctx, events.Event{
		Type:      events.TypeSlotReleased,
		TenantID:  tenantID,
		HoldID:    id,
		Timestamp: s.now().UTC(),
		Payload: map[string]any{
			"resource_id": hold.ResourceID,
			"start":       hold.Start,
			"end":         hold.End,
		},
	})
	s.waitlist.NotifyReleased(ctx, tenantID, hold.ResourceID, hold.Interval())

	s.cfg.Log.Info("Hold released", "id", id, "tenant_id", tenantID)
	return nil
}

func (s *holdService) Promote(ctx context.Context, tenantID, id, ownerToken string) (*model.BookingDraft, error) {
	hold, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, s.translateLookupError(err, id)
	}
	if hold.OwnerToken != ownerToken {
		return nil, apperrors.NotFoundWithID("Hold", id)
	}

	now := s.now()
	if err := s.repo.Consume(ctx, tenantID, id, now); err != nil {
		if errors.Is(err, holderrors.ErrConsumeFailed) {
			return nil, s.classifyConsumeFailure(ctx, tenantID, id, hold)
		}
		return nil, apperrors.Internal("Failed to consume hold", err)
	}

	// The reservation must be made permanent while the hold is still
	// unexpired, otherwise a competing Reserve may already have taken
	// the slot.
	if err := s.guard.Commit(ctx, tenantID, hold.ReservationToken); err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.HoldExpired(id)
		}
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:      events.TypeHoldPromoted,
		TenantID:  tenantID,
		HoldID:    id,
		Timestamp: now.UTC(),
		Payload: map[string]any{
			"resource_id": hold.ResourceID,
			"start":       hold.Start,
			"end":         hold.End,
		},
	})

	s.cfg.Log.Info("Hold promoted", "id", id, "tenant_id", tenantID)
	return &model.BookingDraft{
		TenantID:         tenantID,
		ResourceID:       hold.ResourceID,
		Interval:         hold.Interval(),
		ReservationToken: hold.ReservationToken,
		HoldID:           id,
	}, nil
}

// classifyConsumeFailure re-reads the hold to report the precise reason
// the conditional consume matched nothing.
func (s *holdService) classifyConsumeFailure(ctx context.Context, tenantID, id string, stale *model.Hold) error {
	hold, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		hold = stale
	}
	if hold.Consumed {
		return apperrors.HoldConsumed(id)
	}
	return apperrors.HoldExpired(id)
}

func (s *holdService) Sweep(ctx context.Context) (int, error) {
	const batchSize = 100

	now := s.now()
	expired, err := s.repo.FindExpired(ctx, now, batchSize)
	if err != nil {
		return 0, apperrors.Internal("Failed to find expired holds", err)
	}

	swept := 0
	for _, hold := range expired {
		if err := s.guard.Release(ctx, hold.TenantID, hold.ReservationToken); err != nil {
			s.cfg.Log.Warn("Failed to release reservation of expired hold", "id", hold.ID, "error", err)
			continue
		}
		if err := s.repo.Delete(ctx, hold.TenantID, hold.ID); err != nil {
			if !errors.Is(err, holderrors.ErrNotFound) {
				s.cfg.Log.Warn("Failed to delete expired hold", "id", hold.ID, "error", err)
				continue
			}
		}
		swept++

		s.publish(ctx, events.Event{
			Type:      events.TypeHoldExpired,
			TenantID:  hold.TenantID,
			HoldID:    hold.ID,
			Timestamp: now.UTC(),
			Payload: map[string]any{
				"resource_id": hold.ResourceID,
				"start":       hold.Start,
				"end":         hold.End,
			},
		})
		s.waitlist.NotifyReleased(ctx, hold.TenantID, hold.ResourceID, hold.Interval())
	}

	// Reservations can outlive their hold document if a delete failed
	// mid-sweep; reclaim those too.
	if _, err := s.guard.ReclaimExpired(ctx); err != nil {
		s.cfg.Log.Warn("Failed to reclaim expired reservations", "error", err)
	}

	if swept > 0 {
		metrics.IncHoldsExpired(swept)
		s.cfg.Log.Info("Expired holds swept", "count", swept)
	}
	return swept, nil
}

func (s *holdService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish hold event", "type", event.Type, "hold_id", event.HoldID, "error", err)
	}
}

func (s *holdService) translateLookupError(err error, id string) error {
	if errors.Is(err, holderrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Hold", id)
	}
	if errors.Is(err, holderrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid hold ID format")
	}
	return apperrors.Internal("Failed to retrieve hold", err)
}
