package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slotline/internal/conflict/repository"
	"slotline/pkg/config"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/metrics"
	"slotline/pkg/model"
)

const (
	outcomeReserved = "reserved"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// ReserveRequest claims interval on a resource. The interval must
// already include any pre/post buffers.
type ReserveRequest struct {
	TenantID   string
	ResourceID string
	Interval   model.Interval
	// ExpiresAt bounds the reservation's lifetime; zero means permanent.
	// Hold-backed reservations set this to the hold's expiry.
	ExpiresAt time.Time
}

// Guard is the single write path for reservations. No two active
// reservations on the same resource may overlap, under any
// interleaving of concurrent calls.
type Guard interface {
	Reserve(ctx context.Context, req ReserveRequest) (string, error)
	Rebook(ctx context.Context, req ReserveRequest, oldToken string) (string, error)
	Release(ctx context.Context, tenantID, token string) error
	// Commit makes an expiring reservation permanent. Fails if the
	// reservation is gone or has already lapsed.
	Commit(ctx context.Context, tenantID, token string) error
	HasConflict(ctx context.Context, tenantID, resourceID string, interval model.Interval) (bool, error)
	// ReclaimExpired physically removes lapsed reservations.
	ReclaimExpired(ctx context.Context) (int64, error)
}

type guard struct {
	store repository.ReservationStore
	cfg   *config.Config

	// now is swappable in tests.
	now func() time.Time
}

func NewGuard(store repository.ReservationStore, cfg *config.Config) Guard {
	return &guard{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (g *guard) Reserve(ctx context.Context, req ReserveRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	token := uuid.New().String()

	err := g.store.WithResourceLock(ctx, req.TenantID, req.ResourceID, func(ctx context.Context) error {
		existing, err := g.store.FindOverlapping(ctx, req.TenantID, req.ResourceID, req.Interval, g.now())
		if err != nil {
			return apperrors.Internal("Failed to check existing reservations", err)
		}
		if len(existing) > 0 {
			return conflictError(existing[0])
		}

		reservation := &model.Reservation{
			Token:      token,
			TenantID:   req.TenantID,
			ResourceID: req.ResourceID,
			Start:      req.Interval.Start,
			End:        req.Interval.End,
			ExpiresAt:  req.ExpiresAt,
		}
		if err := g.store.Insert(ctx, reservation); err != nil {
			return apperrors.Internal("Failed to insert reservation", err)
		}
		return nil
	})
	if err != nil {
		g.recordOutcome(err)
		g.cfg.Log.Debug("Reservation rejected",
			"tenant_id", req.TenantID,
			"resource_id", req.ResourceID,
			"start", req.Interval.Start,
			"end", req.Interval.End,
			"error", err,
		)
		return "", err
	}

	metrics.IncReserveAttempt(outcomeReserved)
	g.cfg.Log.Info("Reservation created",
		"tenant_id", req.TenantID,
		"resource_id", req.ResourceID,
		"token", token,
		"start", req.Interval.Start,
		"end", req.Interval.End,
	)
	return token, nil
}

// Rebook replaces oldToken with a reservation for req atomically. The
// old reservation does not count against the new interval, so moving a
// booking within its own slot succeeds, and the old slot is never
// observable as free unless the new claim succeeded.
func (g *guard) Rebook(ctx context.Context, req ReserveRequest, oldToken string) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	if oldToken == "" {
		return "", apperrors.InvalidInput("Reservation token cannot be empty")
	}

	token := uuid.New().String()

	err := g.store.WithResourceLock(ctx, req.TenantID, req.ResourceID, func(ctx context.Context) error {
		if _, err := g.store.Get(ctx, req.TenantID, oldToken); err != nil {
			return apperrors.NotFoundWithID("Reservation", oldToken)
		}

		existing, err := g.store.FindOverlapping(ctx, req.TenantID, req.ResourceID, req.Interval, g.now())
		if err != nil {
			return apperrors.Internal("Failed to check existing reservations", err)
		}
		for _, r := range existing {
			if r.Token == oldToken {
				continue
			}
			return conflictError(r)
		}

		reservation := &model.Reservation{
			Token:      token,
			TenantID:   req.TenantID,
			ResourceID: req.ResourceID,
			Start:      req.Interval.Start,
			End:        req.Interval.End,
			ExpiresAt:  req.ExpiresAt,
		}
		if err := g.store.Swap(ctx, req.TenantID, oldToken, reservation); err != nil {
			return apperrors.Internal("Failed to swap reservations", err)
		}
		return nil
	})
	if err != nil {
		g.recordOutcome(err)
		return "", err
	}

	metrics.IncReserveAttempt(outcomeReserved)
	g.cfg.Log.Info("Reservation moved",
		"tenant_id", req.TenantID,
		"old_token", oldToken,
		"token", token,
		"start", req.Interval.Start,
		"end", req.Interval.End,
	)
	return token, nil
}

func (g *guard) Release(ctx context.Context, tenantID, token string) error {
	if token == "" {
		return apperrors.InvalidInput("Reservation token cannot be empty")
	}

	if err := g.store.Delete(ctx, tenantID, token); err != nil {
		// Releasing twice is harmless; the slot is free either way.
		if err == repository.ErrNotFound {
			return nil
		}
		return apperrors.Internal("Failed to release reservation", err)
	}

	g.cfg.Log.Info("Reservation released", "tenant_id", tenantID, "token", token)
	return nil
}

func (g *guard) HasConflict(ctx context.Context, tenantID, resourceID string, interval model.Interval) (bool, error) {
	if !interval.IsValid() {
		return false, apperrors.InvalidInterval("Interval start must precede end")
	}

	existing, err := g.store.FindOverlapping(ctx, tenantID, resourceID, interval, g.now())
	if err != nil {
		return false, apperrors.Internal("Failed to check reservations", err)
	}
	return len(existing) > 0, nil
}

func (g *guard) Commit(ctx context.Context, tenantID, token string) error {
	if token == "" {
		return apperrors.InvalidInput("Reservation token cannot be empty")
	}

	if err := g.store.ClearExpiryIfActive(ctx, tenantID, token, g.now()); err != nil {
		if err == repository.ErrNotFound {
			return apperrors.NotFoundWithID("Reservation", token)
		}
		return apperrors.Internal("Failed to commit reservation", err)
	}

	g.cfg.Log.Info("Reservation committed", "tenant_id", tenantID, "token", token)
	return nil
}

func (g *guard) ReclaimExpired(ctx context.Context) (int64, error) {
	removed, err := g.store.DeleteExpired(ctx, g.now())
	if err != nil {
		return 0, apperrors.Internal("Failed to reclaim expired reservations", err)
	}
	if removed > 0 {
		g.cfg.Log.Debug("Expired reservations reclaimed", "count", removed)
	}
	return removed, nil
}

func (g *guard) recordOutcome(err error) {
	if apperrors.HasCode(err, apperrors.CodeConflict) {
		metrics.IncReserveAttempt(outcomeConflict)
	} else {
		metrics.IncReserveAttempt(outcomeError)
	}
}

func validateRequest(req ReserveRequest) error {
	if req.TenantID == "" || req.ResourceID == "" {
		return apperrors.InvalidInput("TenantID and ResourceID are required")
	}
	if !req.Interval.IsValid() {
		return apperrors.InvalidInterval("Interval start must precede end")
	}
	return nil
}

func conflictError(existing *model.Reservation) error {
	return apperrors.Conflict(fmt.Sprintf(
		"Requested interval overlaps an existing reservation (%s - %s)",
		existing.Start.Format(time.RFC3339),
		existing.End.Format(time.RFC3339),
	))
}
