package service

import (
	"testing"
	"time"

	apperrors "slotline/pkg/errors"
	"slotline/pkg/model"
)

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("failed to load location %s: %v", name, err)
	}
	return loc
}

func weeklyRule(weekday time.Weekday, start, end string) *model.AvailabilityRule {
	return &model.AvailabilityRule{
		TenantID:   "t1",
		ResourceID: "r1",
		Weekday:    weekday,
		LocalStart: start,
		LocalEnd:   end,
	}
}

func collect(t *testing.T, loc *time.Location, rules []*model.AvailabilityRule, exceptions []*model.AvailabilityException, from, to string) ([]model.Interval, []error) {
	t.Helper()
	var intervals []model.Interval
	var errs []error
	for ival, err := range ComputeOpenIntervals(loc, rules, exceptions, from, to) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		intervals = append(intervals, ival)
	}
	return intervals, errs
}

func TestComputeOpenIntervalsPlainWeek(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Monday, "09:00", "17:00"),
		weeklyRule(time.Tuesday, "09:00", "12:00"),
	}

	// 2026-06-01 is a Monday; EDT is UTC-4.
	intervals, errs := collect(t, loc, rules, nil, "2026-06-01", "2026-06-07")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}

	wantMonStart := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	if !intervals[0].Start.Equal(wantMonStart) {
		t.Errorf("Monday start = %v, want %v", intervals[0].Start, wantMonStart)
	}
	wantTueEnd := time.Date(2026, 6, 2, 16, 0, 0, 0, time.UTC)
	if !intervals[1].End.Equal(wantTueEnd) {
		t.Errorf("Tuesday end = %v, want %v", intervals[1].End, wantTueEnd)
	}
}

func TestComputeOpenIntervalsAscendingAndNonOverlapping(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Monday, "13:00", "17:00"),
		weeklyRule(time.Monday, "09:00", "12:00"),
		weeklyRule(time.Monday, "11:00", "14:00"),
	}

	intervals, errs := collect(t, loc, rules, nil, "2026-06-01", "2026-06-01")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	// 09-12 and 11-14 and 13-17 all chain into one window.
	if len(intervals) != 1 {
		t.Fatalf("expected 1 merged interval, got %d", len(intervals))
	}

	want := model.Interval{
		Start: time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC),
	}
	if !intervals[0].Start.Equal(want.Start) || !intervals[0].End.Equal(want.End) {
		t.Errorf("merged interval = %v, want %v", intervals[0], want)
	}
}

func TestSpringForwardOffsetChanges(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Sunday, "09:00", "17:00"),
	}

	// DST starts 2026-03-08 at 02:00 local; 09:00 is already EDT.
	intervals, errs := collect(t, loc, rules, nil, "2026-03-08", "2026-03-08")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}

	wantStart := time.Date(2026, 3, 8, 13, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 8, 21, 0, 0, 0, time.UTC)
	if !intervals[0].Start.Equal(wantStart) || !intervals[0].End.Equal(wantEnd) {
		t.Errorf("spring-forward interval = %v, want [%v, %v)", intervals[0], wantStart, wantEnd)
	}
	if got := intervals[0].Duration(); got != 8*time.Hour {
		t.Errorf("duration = %v, want 8h", got)
	}
}

func TestSpringForwardGapRejected(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Sunday, "02:30", "04:00"),
	}

	// 02:30 local does not exist on 2026-03-08.
	intervals, errs := collect(t, loc, rules, nil, "2026-03-08", "2026-03-08")
	if len(intervals) != 0 {
		t.Fatalf("expected no intervals, got %v", intervals)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if !apperrors.HasCode(errs[0], apperrors.CodeInvalidInterval) {
		t.Fatalf("expected INVALID_INTERVAL, got %v", errs[0])
	}
}

func TestSpringForwardGapOnlyAffectsTransitionDate(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Sunday, "02:30", "04:00"),
	}

	// The same rule on the following Sunday is fine.
	intervals, errs := collect(t, loc, rules, nil, "2026-03-15", "2026-03-15")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
}

func TestFallBackResolvesToEarlierInstant(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Sunday, "01:30", "03:00"),
	}

	// DST ends 2026-11-01 at 02:00 local; 01:30 occurs twice. The first
	// occurrence is 01:30 EDT = 05:30 UTC.
	intervals, errs := collect(t, loc, rules, nil, "2026-11-01", "2026-11-01")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}

	wantStart := time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC)
	if !intervals[0].Start.Equal(wantStart) {
		t.Errorf("fall-back start = %v, want %v (earlier occurrence)", intervals[0].Start, wantStart)
	}
	// 03:00 is unambiguous EST = 08:00 UTC.
	wantEnd := time.Date(2026, 11, 1, 8, 0, 0, 0, time.UTC)
	if !intervals[0].End.Equal(wantEnd) {
		t.Errorf("fall-back end = %v, want %v", intervals[0].End, wantEnd)
	}
}

func TestFallBackFullDayRule(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Sunday, "09:00", "17:00"),
	}

	// After the fall-back transition the offset is EST (UTC-5).
	intervals, errs := collect(t, loc, rules, nil, "2026-11-01", "2026-11-01")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	wantStart := time.Date(2026, 11, 1, 14, 0, 0, 0, time.UTC)
	if !intervals[0].Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", intervals[0].Start, wantStart)
	}
	if got := intervals[0].Duration(); got != 8*time.Hour {
		t.Errorf("duration = %v, want 8h", got)
	}
}

func TestExceptionReplacesRules(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Monday, "09:00", "17:00"),
	}
	exceptions := []*model.AvailabilityException{
		{
			TenantID:   "t1",
			ResourceID: "r1",
			Date:       "2026-06-01",
			Windows:    []model.LocalWindow{{Start: "12:00", End: "14:00"}},
		},
	}

	intervals, errs := collect(t, loc, rules, exceptions, "2026-06-01", "2026-06-01")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}

	wantStart := time.Date(2026, 6, 1, 16, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	if !intervals[0].Start.Equal(wantStart) || !intervals[0].End.Equal(wantEnd) {
		t.Errorf("exception interval = %v, want [%v, %v)", intervals[0], wantStart, wantEnd)
	}
}

func TestClosureExceptionYieldsNothing(t *testing.T) {
	loc := mustLoadLocation(t, "America/New_York")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Monday, "09:00", "17:00"),
	}
	exceptions := []*model.AvailabilityException{
		{TenantID: "t1", ResourceID: "r1", Date: "2026-06-01", Reason: "holiday"},
	}

	intervals, errs := collect(t, loc, rules, exceptions, "2026-06-01", "2026-06-01")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(intervals) != 0 {
		t.Fatalf("expected closure to yield nothing, got %v", intervals)
	}
}

func TestRuleUntilStopsRecurrence(t *testing.T) {
	loc := mustLoadLocation(t, "UTC")
	rule := weeklyRule(time.Monday, "09:00", "17:00")
	rule.Until = "2026-06-01"

	intervals, errs := collect(t, loc, []*model.AvailabilityRule{rule}, nil, "2026-06-01", "2026-06-14")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	// 2026-06-01 and 2026-06-08 are Mondays; only the first is covered.
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	if intervals[0].Start.Day() != 1 {
		t.Errorf("interval on wrong day: %v", intervals[0])
	}
}

func TestSequenceIsRestartable(t *testing.T) {
	loc := mustLoadLocation(t, "UTC")
	rules := []*model.AvailabilityRule{
		weeklyRule(time.Monday, "09:00", "17:00"),
	}

	seq := ComputeOpenIntervals(loc, rules, nil, "2026-06-01", "2026-06-07")

	first, _ := collectSeq(seq)
	second, _ := collectSeq(seq)

	if len(first) != len(second) {
		t.Fatalf("second pass yielded %d intervals, first %d", len(second), len(first))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("pass mismatch at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func collectSeq(seq func(func(model.Interval, error) bool)) ([]model.Interval, []error) {
	var intervals []model.Interval
	var errs []error
	seq(func(ival model.Interval, err error) bool {
		if err != nil {
			errs = append(errs, err)
		} else {
			intervals = append(intervals, ival)
		}
		return true
	})
	return intervals, errs
}

func TestInvalidDateRange(t *testing.T) {
	loc := mustLoadLocation(t, "UTC")

	_, errs := collect(t, loc, nil, nil, "2026-06-07", "2026-06-01")
	if len(errs) != 1 || !apperrors.HasCode(errs[0], apperrors.CodeInvalidInterval) {
		t.Fatalf("expected INVALID_INTERVAL for reversed range, got %v", errs)
	}
}
