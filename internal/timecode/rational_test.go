package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRational_Normalization(t *testing.T) {
	tests := []struct {
		name     string
		num, den int64
		wantNum  int64
		wantDen  int64
	}{
		{"already reduced", 3, 4, 3, 4},
		{"reducible", 6, 8, 3, 4},
		{"negative denominator", 1, -2, -1, 2},
		{"double negative", -2, -4, 1, 2},
		{"zero", 0, 5, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRational(tt.num, tt.den)
			assert.Equal(t, tt.wantNum, r.Num())
			assert.Equal(t, tt.wantDen, r.Den())
		})
	}
}

func TestRational_ZeroDenominatorPanics(t *testing.T) {
	assert.Panics(t, func() { NewRational(1, 0) })
}

func TestRational_ExactComparison(t *testing.T) {
	// 1/3 + 1/3 + 1/3 must equal exactly 1 - the reason floats are banned.
	third := NewRational(1, 3)
	sum := third.Add(third).Add(third)
	assert.True(t, sum.Equal(FromInt(1)))

	// NTSC frame duration arithmetic stays exact.
	tb := NewRational(1001, 30000)
	var acc Rational
	for i := 0; i < 30000; i++ {
		acc = acc.Add(tb)
	}
	assert.True(t, acc.Equal(FromInt(1001)))
}

func TestRational_Ordering(t *testing.T) {
	a := NewRational(1, 3)
	b := NewRational(1, 2)

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, a.LessEq(a))
	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(NewRational(2, 6)))

	assert.True(t, a.Equal(a.Min(b)))
	assert.True(t, b.Equal(a.Max(b)))
}

func TestRational_FloorTo(t *testing.T) {
	tb := NewRational(1, 30)

	tests := []struct {
		name string
		in   Rational
		want Rational
	}{
		{"on grid", NewRational(2, 30), NewRational(2, 30)},
		{"mid frame", NewRational(5, 60), NewRational(2, 30)},
		{"zero", Rational{}, Rational{}},
		{"negative mid frame", NewRational(-1, 60), NewRational(-1, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.FloorTo(tb)
			require.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestRational_String(t *testing.T) {
	assert.Equal(t, "5", FromInt(5).String())
	assert.Equal(t, "1001/30000", NewRational(1001, 30000).String())
	assert.Equal(t, "0", Rational{}.String())
}
