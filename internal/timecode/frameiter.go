package timecode

// FrameIterator walks a RangeSet in discrete steps of one timebase unit,
// yielding the timestamp of every frame whose interval intersects the set.
//
// Frame times are snapped onto the timebase grid (multiples of the timebase
// from zero), so a range starting mid-frame yields the frame that covers its
// start. Two ranges that fall inside the same frame cell yield that frame
// once.
type FrameIterator struct {
	ranges   []TimeRange
	timebase Rational
	idx      int
	next     Rational
	emitted  bool
	last     Rational
}

// NewFrameIterator creates an iterator over set at the given timebase
// (seconds per frame, e.g. 1001/30000). The set is copied; later mutation of
// set does not affect the iterator.
func NewFrameIterator(set *RangeSet, timebase Rational) *FrameIterator {
	it := &FrameIterator{ranges: set.Ranges(), timebase: timebase}
	it.seed()
	return it
}

// NewRangeFrameIterator creates an iterator over a single range.
func NewRangeFrameIterator(r TimeRange, timebase Rational) *FrameIterator {
	it := &FrameIterator{ranges: []TimeRange{r}, timebase: timebase}
	it.seed()
	return it
}

func (it *FrameIterator) seed() {
	if it.idx < len(it.ranges) {
		it.next = it.ranges[it.idx].Start().FloorTo(it.timebase)
	}
}

// Next returns the next frame time. ok is false once the set is exhausted.
func (it *FrameIterator) Next() (Rational, bool) {
	for it.idx < len(it.ranges) {
		r := it.ranges[it.idx]
		if it.next.Less(r.End()) {
			t := it.next
			it.next = it.next.Add(it.timebase)
			if it.emitted && t.LessEq(it.last) {
				// Same frame cell as the previous range - skip.
				continue
			}
			it.emitted = true
			it.last = t
			return t, true
		}
		it.idx++
		it.seed()
	}
	return Rational{}, false
}

// Timebase returns the step the iterator was created with.
func (it *FrameIterator) Timebase() Rational { return it.timebase }
