package model

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End) in universal time.
type Interval struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// Overlaps reports whether the two half-open intervals share any instant:
// [a,b) and [c,d) overlap iff a < d and c < b.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Covers reports whether other lies fully within i.
func (i Interval) Covers(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// IsValid reports whether the interval is non-empty.
func (i Interval) IsValid() bool {
	return i.End.After(i.Start)
}

// Pad widens the interval by pre on the left and post on the right.
// Used to make a reservation occupy a service's buffer minutes.
func (i Interval) Pad(pre, post time.Duration) Interval {
	return Interval{Start: i.Start.Add(-pre), End: i.End.Add(post)}
}

// Shrink narrows the interval by pre on the left and post on the right.
// The result may be empty; callers must check IsValid.
func (i Interval) Shrink(pre, post time.Duration) Interval {
	return Interval{Start: i.Start.Add(pre), End: i.End.Add(-post)}
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}
