package timecode

import "sort"

// RangeSet is an ordered collection of disjoint, non-adjacent time ranges.
// It is the unit of bookkeeping for "which parts of the timeline are dirty"
// and "which parts have been requested".
//
// INVARIANT: after every operation the stored ranges are sorted by start,
// pairwise non-overlapping, and non-adjacent (any two ranges have a real gap
// between them). Add merges, Remove splits, and both preserve this.
//
// RangeSet is not safe for concurrent use. It is owned by the single
// scheduling goroutine; worker results that affect it are marshaled back
// onto that goroutine first.
type RangeSet struct {
	ranges []TimeRange
}

// Add unions r into the set, merging every stored range that overlaps or
// touches r into a single entry. Cost is O(log n + k) for k ranges touched.
func (s *RangeSet) Add(r TimeRange) {
	// First stored range whose end reaches r's start (touch counts).
	lo := sort.Search(len(s.ranges), func(i int) bool {
		return r.start.LessEq(s.ranges[i].end)
	})
	// One past the last stored range whose start is within r (touch counts).
	hi := lo
	for hi < len(s.ranges) && s.ranges[hi].start.LessEq(r.end) {
		r = r.Union(s.ranges[hi])
		hi++
	}
	s.ranges = append(s.ranges[:lo], append([]TimeRange{r}, s.ranges[hi:]...)...)
}

// Remove subtracts r from the set. A stored range entirely inside r is
// dropped; a stored range straddling an endpoint of r is trimmed; a stored
// range containing r entirely is split in two.
func (s *RangeSet) Remove(r TimeRange) {
	lo := sort.Search(len(s.ranges), func(i int) bool {
		return r.start.Less(s.ranges[i].end)
	})
	var replacement []TimeRange
	hi := lo
	for hi < len(s.ranges) && s.ranges[hi].start.Less(r.end) {
		cur := s.ranges[hi]
		if cur.start.Less(r.start) {
			replacement = append(replacement, TimeRange{start: cur.start, end: r.start})
		}
		if r.end.Less(cur.end) {
			replacement = append(replacement, TimeRange{start: r.end, end: cur.end})
		}
		hi++
	}
	if lo == hi {
		return
	}
	s.ranges = append(s.ranges[:lo], append(replacement, s.ranges[hi:]...)...)
}

// Intersects reports whether any stored range overlaps r.
func (s *RangeSet) Intersects(r TimeRange) bool {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return r.start.Less(s.ranges[i].end)
	})
	return i < len(s.ranges) && s.ranges[i].start.Less(r.end)
}

// Contains reports whether t lies inside any stored range.
func (s *RangeSet) Contains(t Rational) bool {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return t.Less(s.ranges[i].end)
	})
	return i < len(s.ranges) && s.ranges[i].Contains(t)
}

// Intersect returns a new set holding the overlap of s with r.
func (s *RangeSet) Intersect(r TimeRange) RangeSet {
	var out RangeSet
	for _, cur := range s.ranges {
		if isect, ok := cur.Intersection(r); ok {
			out.ranges = append(out.ranges, isect)
		}
	}
	return out
}

// IntersectSet returns a new set holding the overlap of s with every range
// in o.
func (s *RangeSet) IntersectSet(o *RangeSet) RangeSet {
	var out RangeSet
	for _, r := range o.ranges {
		isect := s.Intersect(r)
		out.ranges = append(out.ranges, isect.ranges...)
	}
	return out
}

// IsEmpty reports whether the set contains no ranges.
func (s *RangeSet) IsEmpty() bool { return len(s.ranges) == 0 }

// Len returns the number of stored (maximally coalesced) ranges.
func (s *RangeSet) Len() int { return len(s.ranges) }

// Ranges returns a copy of the stored ranges in ascending order.
func (s *RangeSet) Ranges() []TimeRange {
	out := make([]TimeRange, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Clear drops all ranges.
func (s *RangeSet) Clear() { s.ranges = nil }

// Clone returns an independent copy of the set.
func (s *RangeSet) Clone() RangeSet {
	return RangeSet{ranges: s.Ranges()}
}
