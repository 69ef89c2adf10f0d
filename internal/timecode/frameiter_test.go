package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(it *FrameIterator) []Rational {
	var out []Rational
	for {
		t, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}

func TestFrameIterator_SingleRangeOnGrid(t *testing.T) {
	tb := NewRational(1, 2)
	it := NewRangeFrameIterator(NewRange(FromInt(0), FromInt(2)), tb)

	got := collect(it)
	want := []Rational{FromInt(0), NewRational(1, 2), FromInt(1), NewRational(3, 2)}
	assert.Equal(t, want, got)
}

func TestFrameIterator_SnapsStartBackToCoveringFrame(t *testing.T) {
	tb := FromInt(1)
	// Starts mid-frame: frame 3 covers 3.5, so it is included.
	it := NewRangeFrameIterator(NewRange(NewRational(7, 2), FromInt(6)), tb)

	got := collect(it)
	assert.Equal(t, []Rational{FromInt(3), FromInt(4), FromInt(5)}, got)
}

func TestFrameIterator_MultipleRanges(t *testing.T) {
	var s RangeSet
	s.Add(NewRange(FromInt(0), FromInt(2)))
	s.Add(NewRange(FromInt(5), FromInt(7)))

	got := collect(NewFrameIterator(&s, FromInt(1)))
	assert.Equal(t, []Rational{FromInt(0), FromInt(1), FromInt(5), FromInt(6)}, got)
}

func TestFrameIterator_DedupesWithinOneFrameCell(t *testing.T) {
	var s RangeSet
	// Both sub-frame ranges fall inside frame 0.
	s.Add(NewRange(NewRational(1, 10), NewRational(2, 10)))
	s.Add(NewRange(NewRational(3, 10), NewRational(4, 10)))

	got := collect(NewFrameIterator(&s, FromInt(1)))
	assert.Equal(t, []Rational{FromInt(0)}, got)
}

func TestFrameIterator_Empty(t *testing.T) {
	var s RangeSet
	_, ok := NewFrameIterator(&s, FromInt(1)).Next()
	require.False(t, ok)
}

func TestFrameIterator_NTSCStaysExact(t *testing.T) {
	tb := NewRational(1001, 30000)
	it := NewRangeFrameIterator(NewRange(Rational{}, NewRational(1001, 10000)), tb)

	got := collect(it)
	require.Len(t, got, 3)
	assert.True(t, got[1].Equal(tb))
	assert.True(t, got[2].Equal(tb.Add(tb)))
}
