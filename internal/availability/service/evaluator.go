package service

import (
	"fmt"
	"iter"
	"sort"
	"time"

	apperrors "slotline/pkg/errors"
	"slotline/pkg/model"
)

const (
	civilDateLayout = "2006-01-02"
	localTimeLayout = "15:04"
)

// ComputeOpenIntervals evaluates recurring rules and date exceptions
// over the civil dates [fromDate, toDate] (inclusive, "2006-01-02") in
// the tenant's timezone. It yields non-overlapping half-open intervals
// as universal instants, in ascending start order. The sequence is lazy
// and restartable; each iteration re-evaluates from the inputs.
//
// An exception for a date fully replaces that date's recurring windows;
// an exception with no windows closes the date. Timezone offsets are
// resolved per occurrence, so each date crosses DST transitions on its
// own terms.
func ComputeOpenIntervals(
	loc *time.Location,
	rules []*model.AvailabilityRule,
	exceptions []*model.AvailabilityException,
	fromDate, toDate string,
) iter.Seq2[model.Interval, error] {
	return func(yield func(model.Interval, error) bool) {
		from, err := time.ParseInLocation(civilDateLayout, fromDate, loc)
		if err != nil {
			yield(model.Interval{}, apperrors.InvalidInterval(fmt.Sprintf("Invalid from date %q", fromDate)))
			return
		}
		to, err := time.ParseInLocation(civilDateLayout, toDate, loc)
		if err != nil {
			yield(model.Interval{}, apperrors.InvalidInterval(fmt.Sprintf("Invalid to date %q", toDate)))
			return
		}
		if to.Before(from) {
			yield(model.Interval{}, apperrors.InvalidInterval("Date range end precedes start"))
			return
		}

		excByDate := make(map[string]*model.AvailabilityException, len(exceptions))
		for _, exc := range exceptions {
			excByDate[exc.Date] = exc
		}

		year, month, day := from.Date()
		endYear, endMonth, endDay := to.Date()
		for {
			date := time.Date(year, month, day, 0, 0, 0, 0, loc)
			dateStr := date.Format(civilDateLayout)

			windows := windowsForDate(date, dateStr, rules, excByDate)
			intervals := make([]model.Interval, 0, len(windows))
			for _, w := range windows {
				ival, err := resolveWindow(loc, date, w)
				if err != nil {
					if !yield(model.Interval{}, err) {
						return
					}
					continue
				}
				intervals = append(intervals, ival)
			}

			for _, ival := range mergeIntervals(intervals) {
				if !yield(ival, nil) {
					return
				}
			}

			if year == endYear && month == endMonth && day == endDay {
				return
			}
			day++
			year, month, day = time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
		}
	}
}

// windowsForDate collects the local windows applying to one civil date,
// sorted by local start.
func windowsForDate(date time.Time, dateStr string, rules []*model.AvailabilityRule, excByDate map[string]*model.AvailabilityException) []model.LocalWindow {
	if exc, ok := excByDate[dateStr]; ok {
		windows := make([]model.LocalWindow, len(exc.Windows))
		copy(windows, exc.Windows)
		sortWindows(windows)
		return windows
	}

	var windows []model.LocalWindow
	weekday := date.Weekday()
	for _, rule := range rules {
		if rule.Weekday != weekday {
			continue
		}
		if rule.Until != "" && dateStr > rule.Until {
			continue
		}
		windows = append(windows, model.LocalWindow{Start: rule.LocalStart, End: rule.LocalEnd})
	}
	sortWindows(windows)
	return windows
}

func sortWindows(windows []model.LocalWindow) {
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Start < windows[j].Start
	})
}

func resolveWindow(loc *time.Location, date time.Time, w model.LocalWindow) (model.Interval, error) {
	start, err := resolveLocalTime(loc, date, w.Start)
	if err != nil {
		return model.Interval{}, err
	}
	end, err := resolveLocalTime(loc, date, w.End)
	if err != nil {
		return model.Interval{}, err
	}
	if !end.After(start) {
		return model.Interval{}, apperrors.InvalidInterval(fmt.Sprintf(
			"Window %s-%s on %s collapses after timezone resolution",
			w.Start, w.End, date.Format(civilDateLayout),
		))
	}
	return model.Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// resolveLocalTime maps a wall-clock time on a civil date to a
// universal instant. A time skipped by a spring-forward transition does
// not exist and is rejected. A time repeated by a fall-back transition
// resolves to the earlier instant, deterministically.
func resolveLocalTime(loc *time.Location, date time.Time, hhmm string) (time.Time, error) {
	parsed, err := time.Parse(localTimeLayout, hhmm)
	if err != nil {
		return time.Time{}, apperrors.InvalidInterval(fmt.Sprintf("Invalid local time %q", hhmm))
	}
	hour, minute := parsed.Hour(), parsed.Minute()

	year, month, day := date.Date()
	candidate := time.Date(year, month, day, hour, minute, 0, 0, loc)

	// time.Date normalizes nonexistent wall-clock times to a different
	// reading; a round-trip mismatch means the time fell in a DST gap.
	if candidate.Hour() != hour || candidate.Minute() != minute || candidate.Day() != day {
		return time.Time{}, apperrors.InvalidInterval(fmt.Sprintf(
			"Local time %s on %s does not exist in %s (DST transition)",
			hhmm, date.Format(civilDateLayout), loc.String(),
		))
	}

	// If the same wall-clock reading also occurred one transition-width
	// earlier, the time is ambiguous; pick the first occurrence.
	for _, back := range []time.Duration{time.Hour, 30 * time.Minute} {
		earlier := candidate.Add(-back)
		if earlier.Hour() == hour && earlier.Minute() == minute && earlier.Day() == day {
			return earlier, nil
		}
	}
	return candidate, nil
}

// mergeIntervals coalesces overlapping and touching intervals. Input
// must be sorted by start, which windowsForDate guarantees.
func mergeIntervals(intervals []model.Interval) []model.Interval {
	if len(intervals) <= 1 {
		return intervals
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})

	merged := intervals[:1]
	for _, ival := range intervals[1:] {
		last := &merged[len(merged)-1]
		if !ival.Start.After(last.End) {
			if ival.End.After(last.End) {
				last.End = ival.End
			}
			continue
		}
		merged = append(merged, ival)
	}
	return merged
}
