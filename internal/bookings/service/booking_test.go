package service

import (
	"context"
	"testing"
	"time"

	"slotline/internal/audit"
	availabilityrepo "slotline/internal/availability/repository"
	availabilityservice "slotline/internal/availability/service"
	availabilityvalidator "slotline/internal/availability/validator"
	"slotline/internal/bookings/repository"
	"slotline/internal/bookings/validator"
	conflictrepo "slotline/internal/conflict/repository"
	conflictservice "slotline/internal/conflict/service"
	"slotline/internal/directory"
	"slotline/internal/events"
	"slotline/internal/idempotency"
	waitlistrepo "slotline/internal/waitlist/repository"
	waitlistservice "slotline/internal/waitlist/service"
	"slotline/pkg/config"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/logger"
	"slotline/pkg/model"
)

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) typesSeen() map[string]int {
	seen := make(map[string]int)
	for _, e := range p.events {
		seen[e.Type]++
	}
	return seen
}

type bookingFixture struct {
	svc      *bookingService
	guard    conflictservice.Guard
	waitlist waitlistservice.WaitlistService
	pub      *capturePublisher
	idem     *idempotency.MemoryStore
}

// newBookingFixture wires a tenant in UTC with one resource and one
// 60-minute service carrying a 10-minute post buffer. The resource is
// open Mondays 09:00 to 17:00.
func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	cfg := &config.Config{
		Log:              logger.New(logger.Config{Level: logger.ERROR, Service: "test"}),
		SlotStep:         15 * time.Minute,
		MaxSlotRangeDays: 31,
	}

	dir := directory.NewMemoryDirectory()
	dir.PutTenant(&model.Tenant{ID: "t1", Name: "Tenant One", TimeZone: "UTC"})
	dir.PutResource(&model.Resource{ID: "r1", TenantID: "t1", Name: "Room One"})
	dir.PutService(&model.Service{
		ID:            "s1",
		TenantID:      "t1",
		Name:          "Consultation",
		DurationMin:   60,
		PostBufferMin: 10,
	})

	ruleRepo := availabilityrepo.NewMemoryRuleRepository()
	if err := ruleRepo.CreateRule(context.Background(), &model.AvailabilityRule{
		TenantID:   "t1",
		ResourceID: "r1",
		Weekday:    time.Monday,
		LocalStart: "09:00",
		LocalEnd:   "17:00",
	}); err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	guard := conflictservice.NewGuard(conflictrepo.NewMemoryReservationStore(), cfg)
	availability := availabilityservice.NewAvailabilityService(
		ruleRepo, dir, guard, availabilityvalidator.NewRuleValidator(cfg.Log), cfg)

	pub := &capturePublisher{}
	waitlist := waitlistservice.NewWaitlistService(waitlistrepo.NewMemoryWaitlistRepository(), pub, cfg)
	idem := idempotency.NewMemoryStore(time.Hour, time.Hour)
	t.Cleanup(idem.Stop)

	svc := NewBookingService(
		repository.NewMemoryBookingRepository(),
		dir,
		availability,
		guard,
		idem,
		waitlist,
		pub,
		audit.NopSink{},
		validator.NewBookingValidator(cfg.Log),
		cfg,
	).(*bookingService)

	return &bookingFixture{svc: svc, guard: guard, waitlist: waitlist, pub: pub, idem: idem}
}

// monday is an open Monday for the fixture's rule.
func monday(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func createRequest(start time.Time, key string) CreateBookingRequest {
	return CreateBookingRequest{
		TenantID:       "t1",
		ResourceID:     "r1",
		ServiceID:      "s1",
		CustomerID:     "c1",
		Start:          start,
		IdempotencyKey: key,
	}
}

func TestCreateBookingPending(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if booking.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", booking.Status)
	}
	if !booking.End.Equal(monday(11, 0)) {
		t.Errorf("expected end 11:00, got %v", booking.End)
	}
	if f.pub.typesSeen()[events.TypeBookingPending] != 1 {
		t.Errorf("expected one booking.pending event, saw %v", f.pub.typesSeen())
	}
}

func TestCreateRejectsOutsideAvailability(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	// 16:30 + 60min + 10min post buffer runs past the 17:00 close.
	_, err := f.svc.Create(ctx, createRequest(monday(16, 30), ""))
	if !apperrors.HasCode(err, apperrors.CodeOutsideAvailability) {
		t.Fatalf("expected OUTSIDE_AVAILABILITY, got %v", err)
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, createRequest(monday(10, 0), "")); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := f.svc.Create(ctx, createRequest(monday(10, 30), ""))
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestPostBufferSeparatesBookings(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, createRequest(monday(10, 0), "")); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	// Back to back is rejected: the first booking's post buffer covers
	// 11:00 to 11:10.
	_, err := f.svc.Create(ctx, createRequest(monday(11, 0), ""))
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT inside post buffer, got %v", err)
	}

	if _, err := f.svc.Create(ctx, createRequest(monday(11, 10), "")); err != nil {
		t.Fatalf("booking after buffer should succeed: %v", err)
	}
}

func TestCreateIdempotentReplay(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, createRequest(monday(10, 0), "key-1"))
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	second, err := f.svc.Create(ctx, createRequest(monday(10, 0), "key-1"))
	if err != nil {
		t.Fatalf("replayed Create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("replay returned a different booking: %s vs %s", second.ID, first.ID)
	}
	if f.pub.typesSeen()[events.TypeBookingPending] != 1 {
		t.Errorf("replay must not create a second booking, events: %v", f.pub.typesSeen())
	}
}

func TestCreateIdempotencyKeyConflict(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, createRequest(monday(10, 0), "key-1")); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := f.svc.Create(ctx, createRequest(monday(13, 0), "key-1"))
	if !apperrors.HasCode(err, apperrors.CodeIdempotencyConflict) {
		t.Fatalf("expected IDEMPOTENCY_KEY_CONFLICT, got %v", err)
	}
}

func TestFailedCreateReleasesKey(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, createRequest(monday(10, 0), "")); err != nil {
		t.Fatalf("seed Create failed: %v", err)
	}

	// Conflicting create fails; its key must be reusable afterwards.
	if _, err := f.svc.Create(ctx, createRequest(monday(10, 30), "key-1")); err == nil {
		t.Fatal("expected conflict")
	}
	if _, err := f.svc.Create(ctx, createRequest(monday(13, 0), "key-1")); err != nil {
		t.Fatalf("key not released after failed create: %v", err)
	}
}

func TestConfirmSuccess(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	confirmed, err := f.svc.Confirm(ctx, "t1", model.PaymentResult{
		BookingID: booking.ID,
		Success:   true,
		Reference: "pay-123",
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Errorf("expected confirmed, got %s", confirmed.Status)
	}
	if f.pub.typesSeen()[events.TypeBookingConfirmed] != 1 {
		t.Errorf("expected one booking.confirmed event, saw %v", f.pub.typesSeen())
	}
}

func TestConfirmPaymentFailureCancelsAndFreesSlot(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	canceled, err := f.svc.Confirm(ctx, "t1", model.PaymentResult{
		BookingID: booking.ID,
		Success:   false,
		Reason:    "card declined",
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if canceled.Status != model.StatusCanceled {
		t.Errorf("expected canceled, got %s", canceled.Status)
	}

	if _, err := f.svc.Create(ctx, createRequest(monday(10, 0), "")); err != nil {
		t.Fatalf("slot still blocked after payment failure: %v", err)
	}
}

func TestCancelFreesSlotAndNotifiesWaitlist(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := f.waitlist.Join(ctx, &model.WaitlistEntry{
		TenantID:   "t1",
		ResourceID: "r1",
		Start:      monday(10, 0),
		End:        monday(11, 0),
		CustomerID: "c2",
	}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if err := f.svc.Cancel(ctx, "t1", booking.ID, "customer", "plans changed"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	seen := f.pub.typesSeen()
	if seen[events.TypeBookingCanceled] != 1 {
		t.Errorf("expected one booking.canceled event, saw %v", seen)
	}
	if seen[events.TypeWaitlistNotified] != 1 {
		t.Errorf("expected one waitlist.notified event, saw %v", seen)
	}

	stored, err := f.svc.Get(ctx, "t1", booking.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != model.StatusCanceled || stored.CancelReason != "plans changed" {
		t.Errorf("unexpected stored booking: %+v", stored)
	}
}

func TestCancelCompletedRejected(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, "t1", model.PaymentResult{BookingID: booking.ID, Success: true}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	f.svc.now = func() time.Time { return monday(12, 0) }
	if err := f.svc.Complete(ctx, "t1", booking.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	err = f.svc.Cancel(ctx, "t1", booking.ID, "customer", "late change")
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_STATE_TRANSITION, got %v", err)
	}
}

func TestRescheduleMovesBooking(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	moved, err := f.svc.Reschedule(ctx, "t1", booking.ID, monday(13, 0))
	if err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
	if !moved.Start.Equal(monday(13, 0)) || !moved.End.Equal(monday(14, 0)) {
		t.Errorf("unexpected interval after reschedule: %v to %v", moved.Start, moved.End)
	}

	// The old slot must be free and the new one taken.
	if _, err := f.svc.Create(ctx, createRequest(monday(10, 0), "")); err != nil {
		t.Fatalf("old slot still blocked: %v", err)
	}
	_, err = f.svc.Create(ctx, createRequest(monday(13, 0), ""))
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT on new slot, got %v", err)
	}
}

func TestRescheduleConflictKeepsOriginal(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, "t1", model.PaymentResult{BookingID: booking.ID, Success: true}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if _, err := f.svc.Create(ctx, createRequest(monday(13, 0), "")); err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	_, err = f.svc.Reschedule(ctx, "t1", booking.ID, monday(13, 0))
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	stored, err := f.svc.Get(ctx, "t1", booking.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.Start.Equal(monday(10, 0)) {
		t.Errorf("booking moved despite failed reschedule: %v", stored.Start)
	}
	if stored.Status != model.StatusConfirmed {
		t.Errorf("booking lost its confirmed status: %s", stored.Status)
	}

	// The original slot must still be held.
	busy, err := f.guard.HasConflict(ctx, "t1", "r1", model.Interval{Start: monday(10, 0), End: monday(11, 0)})
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	if !busy {
		t.Error("original slot lost after failed reschedule")
	}
}

func TestMarkNoShowOnlyAfterEnd(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	f.svc.now = func() time.Time { return monday(9, 0) }
	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, "t1", model.PaymentResult{BookingID: booking.ID, Success: true}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	err = f.svc.MarkNoShow(ctx, "t1", booking.ID, "staff")
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT before end time, got %v", err)
	}

	f.svc.now = func() time.Time { return monday(11, 30) }
	if err := f.svc.MarkNoShow(ctx, "t1", booking.ID, "staff"); err != nil {
		t.Fatalf("MarkNoShow failed: %v", err)
	}

	stored, err := f.svc.Get(ctx, "t1", booking.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != model.StatusNoShow {
		t.Errorf("expected no_show, got %s", stored.Status)
	}
	if f.pub.typesSeen()[events.TypeBookingNoShow] != 1 {
		t.Errorf("expected one booking.no_show event, saw %v", f.pub.typesSeen())
	}
}

func TestPendingCannotBeMarkedNoShow(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err = f.svc.MarkNoShow(ctx, "t1", booking.ID, "staff")
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_STATE_TRANSITION, got %v", err)
	}
}

func TestCompleteOnlyAfterEnd(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	f.svc.now = func() time.Time { return monday(9, 0) }
	booking, err := f.svc.Create(ctx, createRequest(monday(10, 0), ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, "t1", model.PaymentResult{BookingID: booking.ID, Success: true}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	err = f.svc.Complete(ctx, "t1", booking.ID)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT before end time, got %v", err)
	}

	f.svc.now = func() time.Time { return monday(11, 30) }
	if err := f.svc.Complete(ctx, "t1", booking.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestCreateFromDraftAdoptsReservation(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	interval := model.Interval{Start: monday(10, 0), End: monday(11, 10)}
	token, err := f.guard.Reserve(ctx, conflictservice.ReserveRequest{
		TenantID:   "t1",
		ResourceID: "r1",
		Interval:   interval,
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	booking, err := f.svc.CreateFromDraft(ctx, &model.BookingDraft{
		TenantID:         "t1",
		ResourceID:       "r1",
		Interval:         interval,
		ReservationToken: token,
		HoldID:           "h1",
	}, "s1", "c1")
	if err != nil {
		t.Fatalf("CreateFromDraft failed: %v", err)
	}
	if booking.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", booking.Status)
	}
	if booking.ReservationToken != token {
		t.Error("draft reservation token not adopted")
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to string }{
		{model.StatusHeld, model.StatusPending},
		{model.StatusPending, model.StatusConfirmed},
		{model.StatusPending, model.StatusCanceled},
		{model.StatusConfirmed, model.StatusCompleted},
		{model.StatusConfirmed, model.StatusCanceled},
		{model.StatusConfirmed, model.StatusNoShow},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s to %s should be allowed", tc.from, tc.to)
		}
	}

	rejected := []struct{ from, to string }{
		{model.StatusHeld, model.StatusConfirmed},
		{model.StatusPending, model.StatusCompleted},
		{model.StatusPending, model.StatusNoShow},
		{model.StatusCanceled, model.StatusPending},
		{model.StatusCompleted, model.StatusCanceled},
		{model.StatusNoShow, model.StatusConfirmed},
	}
	for _, tc := range rejected {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s to %s should be rejected", tc.from, tc.to)
		}
	}
}
