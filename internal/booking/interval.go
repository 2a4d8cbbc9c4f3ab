package booking

import (
	"fmt"
	"sort"
)

// Interval is a half-open [Start, End) range of minutes since midnight.
// Back-to-back intervals (End of one == Start of the next) do not overlap.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (i Interval) String() string {
	return fmt.Sprintf("[%02d:%02d, %02d:%02d)", i.Start/60, i.Start%60, i.End/60, i.End%60)
}

// Overlaps reports whether two half-open intervals intersect. The test is
// symmetric.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// Empty reports whether the interval holds no minutes.
func (i Interval) Empty() bool {
	return i.End <= i.Start
}

// Merge sorts intervals by start and coalesces overlapping or touching
// ones. Empty intervals are dropped. The result is pairwise disjoint and
// ordered by start.
func Merge(in []Interval) []Interval {
	items := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			items = append(items, iv)
		}
	}
	if len(items) == 0 {
		return nil
	}
	sort.Slice(items, func(a, b int) bool { return items[a].Start < items[b].Start })

	out := []Interval{items[0]}
	for _, iv := range items[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract removes the union of busy intervals from the union of windows
// and returns the free intervals, pairwise disjoint and ordered by start.
func Subtract(windows, busy []Interval) []Interval {
	free := Merge(windows)
	for _, b := range Merge(busy) {
		next := make([]Interval, 0, len(free)+1)
		for _, f := range free {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if left := (Interval{Start: f.Start, End: b.Start}); !left.Empty() {
				next = append(next, left)
			}
			if right := (Interval{Start: b.End, End: f.End}); !right.Empty() {
				next = append(next, right)
			}
		}
		free = next
	}
	return free
}
