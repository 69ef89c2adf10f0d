// Package ledger tracks, per time range, the generation at which that range
// was last invalidated. A render stamps the generation of its range at
// dispatch; if the generation moved before the result lands, the result was
// produced from a graph that no longer exists and must not be cached.
//
// The ledger is deliberately coarse: it stores coalesced ranges, not
// per-frame counters. Correctness only needs "did anything overlapping this
// range get invalidated later", not exact attribution, and coarse ranges
// keep the structure compact.
//
// One ledger exists per media type. Like the dirty-range sets, a ledger is
// owned by the single scheduling goroutine and is not safe for concurrent
// use.
package ledger

import (
	"sort"

	"github.com/rodlie/autocache/internal/timecode"
)

// Generation is a monotonically increasing invalidation counter. The zero
// generation means "never invalidated".
type Generation int64

type span struct {
	r   timecode.TimeRange
	gen Generation
}

// Ledger maps time ranges to the generation of their last invalidation.
type Ledger struct {
	spans []span // sorted by start, disjoint
	clock Generation
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Current returns the ledger's latest generation.
func (l *Ledger) Current() Generation { return l.clock }

// Invalidate bumps the generation over r. Spans partially covered by r are
// split so the portion outside r keeps its old generation.
func (l *Ledger) Invalidate(r timecode.TimeRange) Generation {
	l.clock++

	lo := sort.Search(len(l.spans), func(i int) bool {
		return r.Start().Less(l.spans[i].r.End())
	})
	var replacement []span
	hi := lo
	for hi < len(l.spans) && l.spans[hi].r.Start().Less(r.End()) {
		cur := l.spans[hi]
		if cur.r.Start().Less(r.Start()) {
			replacement = append(replacement, span{
				r:   timecode.NewRange(cur.r.Start(), r.Start()),
				gen: cur.gen,
			})
		}
		hi++
	}
	replacement = append(replacement, span{r: r, gen: l.clock})
	// Tail fragment of the last overlapped span, if any.
	if hi > lo {
		last := l.spans[hi-1]
		if r.End().Less(last.r.End()) {
			replacement = append(replacement, span{
				r:   timecode.NewRange(r.End(), last.r.End()),
				gen: last.gen,
			})
		}
	}

	l.spans = append(l.spans[:lo], append(replacement, l.spans[hi:]...)...)
	return l.clock
}

// Stamp returns the newest generation recorded for any span overlapping r.
// Zero if r was never invalidated. Record the stamp with the outstanding
// ticket at dispatch time.
func (l *Ledger) Stamp(r timecode.TimeRange) Generation {
	var g Generation
	lo := sort.Search(len(l.spans), func(i int) bool {
		return r.Start().Less(l.spans[i].r.End())
	})
	for i := lo; i < len(l.spans) && l.spans[i].r.Start().Less(r.End()); i++ {
		if l.spans[i].gen > g {
			g = l.spans[i].gen
		}
	}
	return g
}

// StampTime is Stamp for a single frame time.
func (l *Ledger) StampTime(t timecode.Rational) Generation {
	var g Generation
	for _, s := range l.spans {
		if s.r.Contains(t) && s.gen > g {
			g = s.gen
		}
	}
	return g
}

// IsStale reports whether r was invalidated after the given dispatch-time
// stamp was taken.
func (l *Ledger) IsStale(r timecode.TimeRange, dispatched Generation) bool {
	return l.Stamp(r) != dispatched
}

// IsTimeStale reports whether the frame at t was invalidated after the
// given dispatch-time stamp was taken.
func (l *Ledger) IsTimeStale(t timecode.Rational, dispatched Generation) bool {
	return l.StampTime(t) != dispatched
}
