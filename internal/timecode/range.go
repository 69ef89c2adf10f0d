package timecode

import "fmt"

// TimeRange is a half-open interval [Start, End) on the timeline.
//
// INVARIANT: End > Start. Construct through NewRange, which normalizes a
// reversed pair rather than erroring - callers that computed endpoints out
// of order still mean the same interval.
type TimeRange struct {
	start Rational
	end   Rational
}

// NewRange creates a range from two endpoints, swapping them if reversed.
// Panics if the endpoints are equal: an empty interval invalidates the
// coalescing invariants of RangeSet and is always a caller bug.
func NewRange(start, end Rational) TimeRange {
	if start.Equal(end) {
		panic("timecode: empty range")
	}
	if end.Less(start) {
		start, end = end, start
	}
	return TimeRange{start: start, end: end}
}

// Start returns the inclusive lower bound.
func (r TimeRange) Start() Rational { return r.start }

// End returns the exclusive upper bound.
func (r TimeRange) End() Rational { return r.end }

// Duration returns End - Start.
func (r TimeRange) Duration() Rational { return r.end.Sub(r.start) }

// Contains reports whether t lies inside [Start, End).
func (r TimeRange) Contains(t Rational) bool {
	return r.start.LessEq(t) && t.Less(r.end)
}

// Overlaps reports whether r and o share at least one instant.
// Adjacent ranges ([0,1) and [1,2)) do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.start.Less(o.end) && o.start.Less(r.end)
}

// Touches reports whether r and o overlap or are exactly adjacent.
// Touching ranges can be merged into one.
func (r TimeRange) Touches(o TimeRange) bool {
	return r.start.LessEq(o.end) && o.start.LessEq(r.end)
}

// Union returns the smallest range covering both r and o.
// Only meaningful when r.Touches(o).
func (r TimeRange) Union(o TimeRange) TimeRange {
	return TimeRange{start: r.start.Min(o.start), end: r.end.Max(o.end)}
}

// Intersection returns the overlap of r and o. ok is false when they do
// not overlap.
func (r TimeRange) Intersection(o TimeRange) (TimeRange, bool) {
	if !r.Overlaps(o) {
		return TimeRange{}, false
	}
	return TimeRange{start: r.start.Max(o.start), end: r.end.Min(o.end)}, true
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.start, r.end)
}
