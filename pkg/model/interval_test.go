package model

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestInterval_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Interval
		b    Interval
		want bool
	}{
		{"disjoint", Interval{at(9, 0), at(10, 0)}, Interval{at(11, 0), at(12, 0)}, false},
		{"touching edges do not overlap", Interval{at(9, 0), at(10, 0)}, Interval{at(10, 0), at(11, 0)}, false},
		{"partial overlap", Interval{at(9, 0), at(10, 0)}, Interval{at(9, 30), at(10, 30)}, true},
		{"contained", Interval{at(9, 0), at(12, 0)}, Interval{at(10, 0), at(11, 0)}, true},
		{"identical", Interval{at(9, 0), at(10, 0)}, Interval{at(9, 0), at(10, 0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("%s.Overlaps(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("overlap must be symmetric: %s vs %s", tt.b, tt.a)
			}
		})
	}
}

func TestInterval_Covers(t *testing.T) {
	outer := Interval{at(9, 0), at(17, 0)}

	if !outer.Covers(Interval{at(9, 0), at(17, 0)}) {
		t.Error("an interval covers itself")
	}
	if !outer.Covers(Interval{at(10, 0), at(11, 0)}) {
		t.Error("expected inner interval to be covered")
	}
	if outer.Covers(Interval{at(8, 59), at(10, 0)}) {
		t.Error("interval starting before outer must not be covered")
	}
	if outer.Covers(Interval{at(16, 0), at(17, 1)}) {
		t.Error("interval ending after outer must not be covered")
	}
}

func TestInterval_PadShrink(t *testing.T) {
	base := Interval{at(14, 0), at(15, 0)}

	padded := base.Pad(10*time.Minute, 15*time.Minute)
	if !padded.Start.Equal(at(13, 50)) || !padded.End.Equal(at(15, 15)) {
		t.Errorf("Pad: got %s", padded)
	}

	shrunk := base.Shrink(10*time.Minute, 15*time.Minute)
	if !shrunk.Start.Equal(at(14, 10)) || !shrunk.End.Equal(at(14, 45)) {
		t.Errorf("Shrink: got %s", shrunk)
	}

	empty := base.Shrink(40*time.Minute, 30*time.Minute)
	if empty.IsValid() {
		t.Error("over-shrunk interval must be invalid")
	}
}
