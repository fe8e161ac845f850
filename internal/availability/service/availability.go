package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	availerrors "slotline/internal/availability/errors"
	"slotline/internal/availability/repository"
	"slotline/internal/availability/validator"
	conflictservice "slotline/internal/conflict/service"
	"slotline/internal/directory"
	"slotline/pkg/config"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/model"
)

// AvailabilityService manages a resource's schedule and answers slot
// queries. Slot results already account for service buffers and for
// every active reservation known to the conflict guard.
type AvailabilityService interface {
	CreateRule(ctx context.Context, rule *model.AvailabilityRule) error
	DeleteRule(ctx context.Context, tenantID, id string) error
	ListRules(ctx context.Context, tenantID, resourceID string) ([]*model.AvailabilityRule, error)
	CreateException(ctx context.Context, exc *model.AvailabilityException) error
	DeleteException(ctx context.Context, tenantID, id string) error

	OpenIntervals(ctx context.Context, tenantID, resourceID, fromDate, toDate string) ([]model.Interval, error)
	AvailableSlots(ctx context.Context, tenantID, resourceID, serviceID, fromDate, toDate string) ([]model.Interval, error)
	// CheckWithinAvailability verifies that interval lies fully inside
	// one open interval for the resource. The interval must already
	// include service buffers.
	CheckWithinAvailability(ctx context.Context, tenantID, resourceID string, interval model.Interval) error
}

type availabilityService struct {
	repo      repository.RuleRepository
	dir       directory.Directory
	guard     conflictservice.Guard
	validator *validator.RuleValidator
	cfg       *config.Config
}

func NewAvailabilityService(
	repo repository.RuleRepository,
	dir directory.Directory,
	guard conflictservice.Guard,
	ruleValidator *validator.RuleValidator,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		dir:       dir,
		guard:     guard,
		validator: ruleValidator,
		cfg:       cfg,
	}
}

func (s *availabilityService) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	if err := s.validator.ValidateRule(rule); err != nil {
		s.cfg.Log.Warn("Availability rule validation failed", "error", err)
		return apperrors.Validation("Invalid availability rule", map[string]any{"error": err.Error()})
	}
	if _, err := s.dir.GetResource(ctx, rule.TenantID, rule.ResourceID); err != nil {
		return s.translateDirectoryError(err, rule.ResourceID)
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		s.cfg.Log.Error("Failed to create availability rule", "error", err)
		return apperrors.Internal("Failed to create availability rule", err)
	}

	s.cfg.Log.Info("Availability rule created",
		"id", rule.ID,
		"tenant_id", rule.TenantID,
		"resource_id", rule.ResourceID,
		"weekday", rule.Weekday.String(),
		"window", rule.LocalStart+"-"+rule.LocalEnd,
	)
	return nil
}

func (s *availabilityService) DeleteRule(ctx context.Context, tenantID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Rule ID cannot be empty")
	}

	if err := s.repo.DeleteRule(ctx, tenantID, id); err != nil {
		if errors.Is(err, availerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Availability rule", id)
		}
		if errors.Is(err, availerrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid rule ID format")
		}
		return apperrors.Internal("Failed to delete availability rule", err)
	}

	s.cfg.Log.Info("Availability rule deleted", "id", id, "tenant_id", tenantID)
	return nil
}

func (s *availabilityService) ListRules(ctx context.Context, tenantID, resourceID string) ([]*model.AvailabilityRule, error) {
	if tenantID == "" || resourceID == "" {
		return nil, apperrors.InvalidInput("TenantID and ResourceID are required")
	}

	rules, err := s.repo.ListRules(ctx, tenantID, resourceID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list availability rules", err)
	}
	return rules, nil
}

func (s *availabilityService) CreateException(ctx context.Context, exc *model.AvailabilityException) error {
	if err := s.validator.ValidateException(exc); err != nil {
		s.cfg.Log.Warn("Availability exception validation failed", "error", err)
		return apperrors.Validation("Invalid availability exception", map[string]any{"error": err.Error()})
	}
	if _, err := s.dir.GetResource(ctx, exc.TenantID, exc.ResourceID); err != nil {
		return s.translateDirectoryError(err, exc.ResourceID)
	}

	if err := s.repo.CreateException(ctx, exc); err != nil {
		s.cfg.Log.Error("Failed to create availability exception", "error", err)
		return apperrors.Internal("Failed to create availability exception", err)
	}

	s.cfg.Log.Info("Availability exception created",
		"id", exc.ID,
		"tenant_id", exc.TenantID,
		"resource_id", exc.ResourceID,
		"date", exc.Date,
		"closure", exc.IsClosure(),
	)
	return nil
}

func (s *availabilityService) DeleteException(ctx context.Context, tenantID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Exception ID cannot be empty")
	}

	if err := s.repo.DeleteException(ctx, tenantID, id); err != nil {
		if errors.Is(err, availerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Availability exception", id)
		}
		if errors.Is(err, availerrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid exception ID format")
		}
		return apperrors.Internal("Failed to delete availability exception", err)
	}

	s.cfg.Log.Info("Availability exception deleted", "id", id, "tenant_id", tenantID)
	return nil
}

func (s *availabilityService) OpenIntervals(ctx context.Context, tenantID, resourceID, fromDate, toDate string) ([]model.Interval, error) {
	seq, err := s.openIntervalSeq(ctx, tenantID, resourceID, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	var intervals []model.Interval
	for ival, evalErr := range seq {
		if evalErr != nil {
			return nil, evalErr
		}
		intervals = append(intervals, ival)
	}
	return intervals, nil
}

func (s *availabilityService) AvailableSlots(ctx context.Context, tenantID, resourceID, serviceID, fromDate, toDate string) ([]model.Interval, error) {
	svc, err := s.dir.GetService(ctx, tenantID, serviceID)
	if err != nil {
		return nil, s.translateDirectoryError(err, serviceID)
	}

	seq, err := s.openIntervalSeq(ctx, tenantID, resourceID, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	duration := svc.Duration()
	pre, post := svc.PreBuffer(), svc.PostBuffer()
	step := s.cfg.SlotStep

	var slots []model.Interval
	for open, evalErr := range seq {
		if evalErr != nil {
			return nil, evalErr
		}

		// The reservation will be padded by the buffers, so only slots
		// whose padded footprint fits inside the open interval qualify.
		usable := open.Shrink(pre, post)
		if !usable.IsValid() {
			continue
		}

		for start := usable.Start; !start.Add(duration).After(usable.End); start = start.Add(step) {
			candidate := model.Interval{Start: start, End: start.Add(duration)}
			padded := candidate.Pad(pre, post)

			busy, err := s.guard.HasConflict(ctx, tenantID, resourceID, padded)
			if err != nil {
				return nil, err
			}
			if !busy {
				slots = append(slots, candidate)
			}
		}
	}

	s.cfg.Log.Debug("Slot query completed",
		"tenant_id", tenantID,
		"resource_id", resourceID,
		"service_id", serviceID,
		"from", fromDate,
		"to", toDate,
		"slots", len(slots),
	)
	return slots, nil
}

func (s *availabilityService) CheckWithinAvailability(ctx context.Context, tenantID, resourceID string, interval model.Interval) error {
	if !interval.IsValid() {
		return apperrors.InvalidInterval("Interval start must precede end")
	}

	tenant, err := s.dir.GetTenant(ctx, tenantID)
	if err != nil {
		return s.translateDirectoryError(err, tenantID)
	}
	loc, err := time.LoadLocation(tenant.TimeZone)
	if err != nil {
		return apperrors.Internal("Tenant has invalid timezone", err)
	}

	fromDate := interval.Start.In(loc).Format(civilDateLayout)
	toDate := interval.End.In(loc).Format(civilDateLayout)

	seq, err := s.openIntervalSeqIn(ctx, loc, tenantID, resourceID, fromDate, toDate)
	if err != nil {
		return err
	}

	for open, evalErr := range seq {
		if evalErr != nil {
			// A window elsewhere in the range failing DST resolution
			// does not invalidate the candidate interval.
			continue
		}
		if open.Covers(interval) {
			return nil
		}
	}
	return apperrors.OutsideAvailability(fmt.Sprintf(
		"Interval %s is not within the resource's availability", interval,
	))
}

func (s *availabilityService) openIntervalSeq(ctx context.Context, tenantID, resourceID, fromDate, toDate string) (iter.Seq2[model.Interval, error], error) {
	tenant, err := s.dir.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, s.translateDirectoryError(err, tenantID)
	}
	loc, err := time.LoadLocation(tenant.TimeZone)
	if err != nil {
		return nil, apperrors.Internal("Tenant has invalid timezone", err)
	}
	return s.openIntervalSeqIn(ctx, loc, tenantID, resourceID, fromDate, toDate)
}

func (s *availabilityService) openIntervalSeqIn(ctx context.Context, loc *time.Location, tenantID, resourceID, fromDate, toDate string) (iter.Seq2[model.Interval, error], error) {
	if err := s.validateDateRange(fromDate, toDate); err != nil {
		return nil, err
	}
	if _, err := s.dir.GetResource(ctx, tenantID, resourceID); err != nil {
		return nil, s.translateDirectoryError(err, resourceID)
	}

	rules, err := s.repo.ListRules(ctx, tenantID, resourceID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load availability rules", err)
	}
	exceptions, err := s.repo.ListExceptions(ctx, tenantID, resourceID, fromDate, toDate)
	if err != nil {
		return nil, apperrors.Internal("Failed to load availability exceptions", err)
	}

	return ComputeOpenIntervals(loc, rules, exceptions, fromDate, toDate), nil
}

func (s *availabilityService) validateDateRange(fromDate, toDate string) error {
	from, err := time.Parse(civilDateLayout, fromDate)
	if err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("Invalid from date %q, expected YYYY-MM-DD", fromDate))
	}
	to, err := time.Parse(civilDateLayout, toDate)
	if err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("Invalid to date %q, expected YYYY-MM-DD", toDate))
	}
	if to.Before(from) {
		return apperrors.InvalidInput("Date range end precedes start")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > s.cfg.MaxSlotRangeDays {
		return apperrors.InvalidInput(fmt.Sprintf(
			"Date range spans %d days, maximum is %d", days, s.cfg.MaxSlotRangeDays,
		))
	}
	return nil
}

func (s *availabilityService) translateDirectoryError(err error, id string) error {
	switch {
	case errors.Is(err, directory.ErrTenantNotFound):
		return apperrors.NotFoundWithID("Tenant", id)
	case errors.Is(err, directory.ErrResourceNotFound):
		return apperrors.NotFoundWithID("Resource", id)
	case errors.Is(err, directory.ErrServiceNotFound):
		return apperrors.NotFoundWithID("Service", id)
	default:
		return apperrors.Internal("Directory lookup failed", err)
	}
}
