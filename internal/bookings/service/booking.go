package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"slotline/internal/audit"
	availabilityservice "slotline/internal/availability/service"
	bookingerrors "slotline/internal/bookings/errors"
	"slotline/internal/bookings/repository"
	"slotline/internal/bookings/validator"
	conflictservice "slotline/internal/conflict/service"
	"slotline/internal/directory"
	"slotline/internal/events"
	"slotline/internal/idempotency"
	waitlistservice "slotline/internal/waitlist/service"
	"slotline/pkg/config"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/metrics"
	"slotline/pkg/model"
)

// CreateBookingRequest books a slot directly, without a prior hold. The
// booking interval is Start plus the service's duration; buffers are
// applied on top when reserving.
type CreateBookingRequest struct {
	TenantID   string    `json:"tenant_id"`
	ResourceID string    `json:"resource_id"`
	ServiceID  string    `json:"service_id"`
	CustomerID string    `json:"customer_id"`
	Start      time.Time `json:"start"`
	// IdempotencyKey, when set, makes retries of the same request
	// return the original booking instead of creating a duplicate.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type BookingService interface {
	Create(ctx context.Context, req CreateBookingRequest) (*model.Booking, error)
	// CreateFromDraft books the slot a promoted hold already reserved.
	// The draft's reservation token is adopted as-is.
	CreateFromDraft(ctx context.Context, draft *model.BookingDraft, serviceID, customerID string) (*model.Booking, error)
	Get(ctx context.Context, tenantID, id string) (*model.Booking, error)
	ListByCustomer(ctx context.Context, tenantID, customerID string) ([]*model.Booking, error)
	// Confirm applies a payment outcome to a pending booking: success
	// confirms it, failure cancels it and frees the slot.
	Confirm(ctx context.Context, tenantID string, result model.PaymentResult) (*model.Booking, error)
	Cancel(ctx context.Context, tenantID, id, actor, reason string) error
	// Reschedule moves the booking to a new start. The old slot stays
	// reserved until the new one is committed, so a failed reschedule
	// leaves the booking untouched.
	Reschedule(ctx context.Context, tenantID, id string, newStart time.Time) (*model.Booking, error)
	// MarkNoShow records that the customer did not appear. Only allowed
	// once the booking's end has passed.
	MarkNoShow(ctx context.Context, tenantID, id, actor string) error
	Complete(ctx context.Context, tenantID, id string) error
}

type bookingService struct {
	repo         repository.BookingRepository
	dir          directory.Directory
	availability availabilityservice.AvailabilityService
	guard        conflictservice.Guard
	idem         idempotency.Store
	waitlist     waitlistservice.WaitlistService
	publisher    events.Publisher
	auditor      audit.Sink
	validator    *validator.BookingValidator
	cfg          *config.Config

	// now is swappable in tests.
	now func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	dir directory.Directory,
	availability availabilityservice.AvailabilityService,
	guard conflictservice.Guard,
	idem idempotency.Store,
	waitlist waitlistservice.WaitlistService,
	publisher events.Publisher,
	auditor audit.Sink,
	bookingValidator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		dir:          dir,
		availability: availability,
		guard:        guard,
		idem:         idem,
		waitlist:     waitlist,
		publisher:    publisher,
		auditor:      auditor,
		validator:    bookingValidator,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	svc, padded, err := s.resolveSlot(ctx, req.TenantID, req.ResourceID, req.ServiceID, req.Start)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		replayed, err := s.claimKey(ctx, req)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	booking, err := s.createReserved(ctx, req, svc, padded)
	if err != nil {
		if req.IdempotencyKey != "" {
			if forgetErr := s.idem.Forget(ctx, req.TenantID, req.IdempotencyKey); forgetErr != nil {
				s.cfg.Log.Warn("Failed to release idempotency key", "key", req.IdempotencyKey, "error", forgetErr)
			}
		}
		return nil, err
	}

	if req.IdempotencyKey != "" {
		body, marshalErr := json.Marshal(booking)
		if marshalErr == nil {
			if err := s.idem.Complete(ctx, req.TenantID, req.IdempotencyKey, body); err != nil {
				s.cfg.Log.Warn("Failed to complete idempotency key", "key", req.IdempotencyKey, "error", err)
			}
		}
	}
	return booking, nil
}

// claimKey runs the idempotency check. A non-nil booking means the
// request already completed and its stored result is returned verbatim.
func (s *bookingService) claimKey(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	hash, err := idempotency.PayloadFingerprint(req)
	if err != nil {
		return nil, apperrors.Internal("Failed to fingerprint booking request", err)
	}

	result, err := s.idem.CheckOrReserve(ctx, req.TenantID, req.IdempotencyKey, hash)
	if err != nil {
		return nil, apperrors.Internal("Idempotency check failed", err)
	}

	switch result.Outcome {
	case idempotency.OutcomeNew:
		return nil, nil
	case idempotency.OutcomeReplay:
		var booking model.Booking
		if err := json.Unmarshal(result.Result, &booking); err != nil {
			return nil, apperrors.Internal("Failed to decode stored booking", err)
		}
		s.cfg.Log.Info("Booking request replayed", "key", req.IdempotencyKey, "booking_id", booking.ID)
		return &booking, nil
	case idempotency.OutcomeInProgress:
		return nil, apperrors.Conflict("An identical request is already in progress")
	default:
		return nil, apperrors.IdempotencyConflict(req.IdempotencyKey)
	}
}

// createReserved performs availability check, reservation, and insert.
// The padded interval is what gets reserved; the booking row keeps the
// unpadded interval.
func (s *bookingService) createReserved(ctx context.Context, req CreateBookingRequest, svc *model.Service, padded model.Interval) (*model.Booking, error) {
	if err := s.availability.CheckWithinAvailability(ctx, req.TenantID, req.ResourceID, padded); err != nil {
		return nil, err
	}

	token, err := s.guard.Reserve(ctx, conflictservice.ReserveRequest{
		TenantID:   req.TenantID,
		ResourceID: req.ResourceID,
		Interval:   padded,
	})
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		TenantID:         req.TenantID,
		ResourceID:       req.ResourceID,
		ServiceID:        svc.ID,
		CustomerID:       req.CustomerID,
		Start:            req.Start,
		End:              req.Start.Add(svc.Duration()),
		Status:           model.StatusPending,
		ReservationToken: token,
		IdempotencyKey:   req.IdempotencyKey,
	}
	if err := s.insertBooking(ctx, booking); err != nil {
		if relErr := s.guard.Release(ctx, req.TenantID, token); relErr != nil {
			s.cfg.Log.Warn("Failed to roll back reservation for failed booking", "token", token, "error", relErr)
		}
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) CreateFromDraft(ctx context.Context, draft *model.BookingDraft, serviceID, customerID string) (*model.Booking, error) {
	if draft == nil || draft.ReservationToken == "" {
		return nil, apperrors.InvalidInput("Booking draft is missing a reservation")
	}
	svc, err := s.dir.GetService(ctx, draft.TenantID, serviceID)
	if err != nil {
		return nil, s.translateDirectoryError(err, serviceID)
	}

	booking := &model.Booking{
		TenantID:         draft.TenantID,
		ResourceID:       draft.ResourceID,
		ServiceID:        svc.ID,
		CustomerID:       customerID,
		Start:            draft.Interval.Start,
		End:              draft.Interval.End,
		Status:           model.StatusPending,
		ReservationToken: draft.ReservationToken,
	}
	if err := s.insertBooking(ctx, booking); err != nil {
		if relErr := s.guard.Release(ctx, draft.TenantID, draft.ReservationToken); relErr != nil {
			s.cfg.Log.Warn("Failed to roll back promoted reservation", "token", draft.ReservationToken, "error", relErr)
		}
		return nil, err
	}
	return booking, nil
}

// insertBooking validates, persists, and announces a new pending
// booking.
func (s *bookingService) insertBooking(ctx context.Context, booking *model.Booking) error {
	if err := s.validator.ValidateBooking(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Invalid booking", map[string]any{"error": err.Error()})
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return apperrors.Internal("Failed to create booking", err)
	}

	metrics.IncBookingTransition(model.StatusPending)
	s.publishBooking(ctx, events.TypeBookingPending, booking, nil)
	s.recordAudit(ctx, booking, "system", "create", "", model.StatusPending, nil)

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"tenant_id", booking.TenantID,
		"resource_id", booking.ResourceID,
		"start", booking.Start,
		"end", booking.End,
	)
	return nil
}

func (s *bookingService) Get(ctx context.Context, tenantID, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, s.translateLookupError(err, id)
	}
	return booking, nil
}

func (s *bookingService) ListByCustomer(ctx context.Context, tenantID, customerID string) ([]*model.Booking, error) {
	if tenantID == "" || customerID == "" {
		return nil, apperrors.InvalidInput("TenantID and CustomerID are required")
	}

	bookings, err := s.repo.ListByCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) Confirm(ctx context.Context, tenantID string, result model.PaymentResult) (*model.Booking, error) {
	if err := s.validator.ValidatePaymentResult(&result); err != nil {
		return nil, apperrors.Validation("Invalid payment result", map[string]any{"error": err.Error()})
	}

	booking, err := s.Get(ctx, tenantID, result.BookingID)
	if err != nil {
		return nil, err
	}

	if !result.Success {
		reason := result.Reason
		if reason == "" {
			reason = "payment failed"
		}
		if err := s.cancelBooking(ctx, booking, "payment", reason); err != nil {
			return nil, err
		}
		booking.Status = model.StatusCanceled
		booking.CancelReason = reason
		return booking, nil
	}

	if err := CheckTransition(booking.Status, model.StatusConfirmed); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, booking.ID, booking.Status, model.StatusConfirmed, ""); err != nil {
		return nil, s.translateLookupError(err, booking.ID)
	}

	metrics.IncBookingTransition(model.StatusConfirmed)
	s.publishBooking(ctx, events.TypeBookingConfirmed, booking, map[string]any{"payment_ref": result.Reference})
	s.recordAudit(ctx, booking, "payment", "confirm", booking.Status, model.StatusConfirmed, nil)

	s.cfg.Log.Info("Booking confirmed", "id", booking.ID, "tenant_id", tenantID)
	booking.Status = model.StatusConfirmed
	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, tenantID, id, actor, reason string) error {
	booking, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return s.cancelBooking(ctx, booking, actor, reason)
}

func (s *bookingService) cancelBooking(ctx context.Context, booking *model.Booking, actor, reason string) error {
	if err := CheckTransition(booking.Status, model.StatusCanceled); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, booking.TenantID, booking.ID, booking.Status, model.StatusCanceled, reason); err != nil {
		return s.translateLookupError(err, booking.ID)
	}

	s.freeSlot(ctx, booking)

	metrics.IncBookingTransition(model.StatusCanceled)
	s.publishBooking(ctx, events.TypeBookingCanceled, booking, map[string]any{"reason": reason})
	s.recordAudit(ctx, booking, actor, "cancel", booking.Status, model.StatusCanceled, map[string]any{"reason": reason})

	s.cfg.Log.Info("Booking canceled", "id", booking.ID, "tenant_id", booking.TenantID, "actor", actor)
	return nil
}

func (s *bookingService) Reschedule(ctx context.Context, tenantID, id string, newStart time.Time) (*model.Booking, error) {
	booking, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.StatusPending && booking.Status != model.StatusConfirmed {
		return nil, apperrors.Conflict("Only pending or confirmed bookings can be rescheduled")
	}

	svc, newPadded, err := s.resolveSlot(ctx, tenantID, booking.ResourceID, booking.ServiceID, newStart)
	if err != nil {
		return nil, err
	}
	if err := s.availability.CheckWithinAvailability(ctx, tenantID, booking.ResourceID, newPadded); err != nil {
		return nil, err
	}

	oldPadded := booking.Interval().Pad(svc.PreBuffer(), svc.PostBuffer())

	// Rebook swaps reservations under the resource lock: the old slot
	// stays held until the new one is inserted.
	token, err := s.guard.Rebook(ctx, conflictservice.ReserveRequest{
		TenantID:   tenantID,
		ResourceID: booking.ResourceID,
		Interval:   newPadded,
	}, booking.ReservationToken)
	if err != nil {
		return nil, err
	}

	newInterval := model.Interval{Start: newStart, End: newStart.Add(svc.Duration())}
	if err := s.repo.UpdateInterval(ctx, tenantID, booking.ID, newInterval, token); err != nil {
		// The reservation moved but the booking row did not. Move the
		// reservation back so state stays consistent.
		if _, rbErr := s.guard.Rebook(ctx, conflictservice.ReserveRequest{
			TenantID:   tenantID,
			ResourceID: booking.ResourceID,
			Interval:   oldPadded,
		}, token); rbErr != nil {
			s.cfg.Log.Error("Failed to restore reservation after reschedule failure", "booking_id", booking.ID, "error", rbErr)
		}
		return nil, s.translateLookupError(err, booking.ID)
	}

	s.publish(ctx, events.Event{
		Type:      events.TypeSlotReleased,
		TenantID:  tenantID,
		BookingID: booking.ID,
		Timestamp: s.now().UTC(),
		Payload: map[string]any{
			"resource_id": booking.ResourceID,
			"start":       oldPadded.Start,
			"end":         oldPadded.End,
		},
	})
	s.waitlist.NotifyReleased(ctx, tenantID, booking.ResourceID, oldPadded)
	s.recordAudit(ctx, booking, "system", "reschedule", "", "", map[string]any{
		"old_start": booking.Start,
		"new_start": newStart,
	})

	s.cfg.Log.Info("Booking rescheduled", "id", booking.ID, "tenant_id", tenantID, "new_start", newStart)
	booking.Start = newInterval.Start
	booking.End = newInterval.End
	booking.ReservationToken = token
	return booking, nil
}

func (s *bookingService) MarkNoShow(ctx context.Context, tenantID, id, actor string) error {
	booking, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := CheckTransition(booking.Status, model.StatusNoShow); err != nil {
		return err
	}
	if s.now().Before(booking.End) {
		return apperrors.Conflict("Booking cannot be marked no-show before its end time")
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, booking.Status, model.StatusNoShow, ""); err != nil {
		return s.translateLookupError(err, id)
	}

	s.freeSlot(ctx, booking)

	metrics.IncBookingTransition(model.StatusNoShow)
	s.publishBooking(ctx, events.TypeBookingNoShow, booking, nil)
	s.recordAudit(ctx, booking, actor, "no_show", booking.Status, model.StatusNoShow, nil)

	s.cfg.Log.Info("Booking marked no-show", "id", id, "tenant_id", tenantID, "actor", actor)
	return nil
}

func (s *bookingService) Complete(ctx context.Context, tenantID, id string) error {
	booking, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := CheckTransition(booking.Status, model.StatusCompleted); err != nil {
		return err
	}
	if s.now().Before(booking.End) {
		return apperrors.Conflict("Booking cannot be completed before its end time")
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, booking.Status, model.StatusCompleted, ""); err != nil {
		return s.translateLookupError(err, id)
	}

	metrics.IncBookingTransition(model.StatusCompleted)
	s.publishBooking(ctx, events.TypeBookingCompleted, booking, nil)
	s.recordAudit(ctx, booking, "system", "complete", booking.Status, model.StatusCompleted, nil)

	s.cfg.Log.Info("Booking completed", "id", id, "tenant_id", tenantID)
	return nil
}

// resolveSlot looks up the service and computes the buffer-padded
// interval for a booking starting at start.
func (s *bookingService) resolveSlot(ctx context.Context, tenantID, resourceID, serviceID string, start time.Time) (*model.Service, model.Interval, error) {
	if tenantID == "" || resourceID == "" || serviceID == "" {
		return nil, model.Interval{}, apperrors.InvalidInput("TenantID, ResourceID, and ServiceID are required")
	}
	if start.IsZero() {
		return nil, model.Interval{}, apperrors.InvalidInput("Start time is required")
	}

	if _, err := s.dir.GetResource(ctx, tenantID, resourceID); err != nil {
		return nil, model.Interval{}, s.translateDirectoryError(err, resourceID)
	}
	svc, err := s.dir.GetService(ctx, tenantID, serviceID)
	if err != nil {
		return nil, model.Interval{}, s.translateDirectoryError(err, serviceID)
	}

	interval := model.Interval{Start: start, End: start.Add(svc.Duration())}
	return svc, interval.Pad(svc.PreBuffer(), svc.PostBuffer()), nil
}

// freeSlot releases the booking's reservation and wakes any overlapping
// waitlist entries. Best-effort: the status transition already
// happened.
func (s *bookingService) freeSlot(ctx context.Context, booking *model.Booking) {
	if booking.ReservationToken == "" {
		return
	}
	if err := s.guard.Release(ctx, booking.TenantID, booking.ReservationToken); err != nil {
		s.cfg.Log.Warn("Failed to release booking reservation", "booking_id", booking.ID, "error", err)
		return
	}

	svc, err := s.dir.GetService(ctx, booking.TenantID, booking.ServiceID)
	released := booking.Interval()
	if err == nil {
		released = released.Pad(svc.PreBuffer(), svc.PostBuffer())
	}

	s.publish(ctx, events.Event{
		Type:      events.TypeSlotReleased,
		TenantID:  booking.TenantID,
		BookingID: booking.ID,
		Timestamp: s.now().UTC(),
		Payload: map[string]any{
			"resource_id": booking.ResourceID,
			"start":       released.Start,
			"end":         released.End,
		},
	})
	s.waitlist.NotifyReleased(ctx, booking.TenantID, booking.ResourceID, released)
}

func (s *bookingService) publishBooking(ctx context.Context, eventType string, booking *model.Booking, extra map[string]any) {
	payload := map[string]any{
		"resource_id": booking.ResourceID,
		"service_id":  booking.ServiceID,
		"customer_id": booking.CustomerID,
		"start":       booking.Start,
		"end":         booking.End,
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.publish(ctx, events.Event{
		Type:      eventType,
		TenantID:  booking.TenantID,
		BookingID: booking.ID,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	})
}

func (s *bookingService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event", "type", event.Type, "booking_id", event.BookingID, "error", err)
	}
}

func (s *bookingService) recordAudit(ctx context.Context, booking *model.Booking, actor, action, before, after string, details map[string]any) {
	entry := audit.Entry{
		TenantID:   booking.TenantID,
		EntityType: "booking",
		EntityID:   booking.ID,
		Actor:      actor,
		Action:     action,
		Before:     before,
		After:      after,
		Details:    details,
		At:         s.now().UTC(),
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.cfg.Log.Warn("Failed to record audit entry", "action", action, "booking_id", booking.ID, "error", err)
	}
}

func (s *bookingService) translateLookupError(err error, id string) error {
	if errors.Is(err, bookingerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to access booking", err)
}

func (s *bookingService) translateDirectoryError(err error, id string) error {
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
