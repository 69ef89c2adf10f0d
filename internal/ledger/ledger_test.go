package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodlie/autocache/internal/timecode"
)

func r(start, end int64) timecode.TimeRange {
	return timecode.NewRange(timecode.FromInt(start), timecode.FromInt(end))
}

func TestLedger_FreshRangeHasZeroStamp(t *testing.T) {
	l := New()
	assert.Equal(t, Generation(0), l.Stamp(r(0, 10)))
	assert.Equal(t, Generation(0), l.StampTime(timecode.FromInt(5)))
}

func TestLedger_GenerationsAreMonotonic(t *testing.T) {
	l := New()
	g1 := l.Invalidate(r(0, 10))
	g2 := l.Invalidate(r(20, 30))
	g3 := l.Invalidate(r(0, 10))

	assert.Less(t, g1, g2)
	assert.Less(t, g2, g3)
	assert.Equal(t, g3, l.Current())
}

func TestLedger_StampReflectsLatestOverlap(t *testing.T) {
	l := New()
	l.Invalidate(r(0, 10))
	g2 := l.Invalidate(r(5, 15))

	// [0,5) kept the first generation; the newest overlapping [0,10) is g2.
	assert.Equal(t, g2, l.Stamp(r(0, 10)))
	assert.Equal(t, Generation(1), l.Stamp(r(0, 5)))
	assert.Equal(t, g2, l.Stamp(r(12, 14)))
	assert.Equal(t, Generation(0), l.Stamp(r(20, 30)))
}

func TestLedger_SplitPreservesOuterGenerations(t *testing.T) {
	l := New()
	g1 := l.Invalidate(r(0, 30))
	g2 := l.Invalidate(r(10, 20))

	assert.Equal(t, g1, l.Stamp(r(0, 10)))
	assert.Equal(t, g2, l.Stamp(r(10, 20)))
	assert.Equal(t, g1, l.Stamp(r(20, 30)))
	assert.Equal(t, g2, l.Stamp(r(0, 30)))
}

func TestLedger_StaleAfterInterveningInvalidation(t *testing.T) {
	l := New()
	l.Invalidate(r(0, 10))

	// Dispatch: stamp taken.
	stamp := l.Stamp(r(2, 4))
	require.False(t, l.IsStale(r(2, 4), stamp))

	// Graph change invalidates an overlapping range before completion.
	l.Invalidate(r(3, 8))
	assert.True(t, l.IsStale(r(2, 4), stamp))

	// A non-overlapping range is unaffected.
	stampB := l.Stamp(r(0, 2))
	l.Invalidate(r(5, 6))
	assert.False(t, l.IsStale(r(0, 2), stampB))
}

func TestLedger_TimeStaleness(t *testing.T) {
	l := New()
	l.Invalidate(r(0, 10))

	stamp := l.StampTime(timecode.FromInt(5))
	require.False(t, l.IsTimeStale(timecode.FromInt(5), stamp))

	l.Invalidate(r(4, 6))
	assert.True(t, l.IsTimeStale(timecode.FromInt(5), stamp))
	assert.False(t, l.IsTimeStale(timecode.FromInt(2), Generation(1)))
}

func TestLedger_ExactRationalBoundaries(t *testing.T) {
	l := New()
	half := timecode.NewRational(1, 2)
	l.Invalidate(timecode.NewRange(timecode.Rational{}, half))

	// [1/2, 1) never invalidated - end is exclusive.
	assert.Equal(t, Generation(0),
		l.Stamp(timecode.NewRange(half, timecode.FromInt(1))))
	assert.Equal(t, Generation(1),
		l.Stamp(timecode.NewRange(timecode.NewRational(1, 4), half)))
}
