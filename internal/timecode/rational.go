package timecode

import "fmt"

// Rational is an exact rational timestamp or duration in seconds.
//
// All comparisons are exact integer arithmetic - there is no float drift,
// which is what makes range coalescing and frame snapping reliable at
// non-integer frame rates like 30000/1001.
//
// The zero value is 0. Values are kept normalized (positive denominator,
// reduced by gcd) so that equality is plain struct equality.
type Rational struct {
	num int64
	den int64
}

// NewRational creates a normalized rational from a numerator and denominator.
// Panics on a zero denominator - a timestamp with no timebase is a
// programming error, not a recoverable condition.
func NewRational(num, den int64) Rational {
	if den == 0 {
		panic("timecode: zero denominator")
	}
	return Rational{num: num, den: den}.reduced()
}

// FromInt creates a rational representing a whole number of seconds.
func FromInt(n int64) Rational {
	return Rational{num: n, den: 1}
}

func (r Rational) reduced() Rational {
	if r.den < 0 {
		r.num, r.den = -r.num, -r.den
	}
	if g := gcd(abs(r.num), r.den); g > 1 {
		r.num /= g
		r.den /= g
	}
	return r
}

// d returns the denominator, treating the zero value as 0/1.
func (r Rational) d() int64 {
	if r.den == 0 {
		return 1
	}
	return r.den
}

// Num returns the normalized numerator.
func (r Rational) Num() int64 { return r.num }

// Den returns the normalized denominator (always positive).
func (r Rational) Den() int64 { return r.d() }

// Add returns r + o.
func (r Rational) Add(o Rational) Rational {
	return Rational{num: r.num*o.d() + o.num*r.d(), den: r.d() * o.d()}.reduced()
}

// Sub returns r - o.
func (r Rational) Sub(o Rational) Rational {
	return Rational{num: r.num*o.d() - o.num*r.d(), den: r.d() * o.d()}.reduced()
}

// Mul returns r * o.
func (r Rational) Mul(o Rational) Rational {
	return Rational{num: r.num * o.num, den: r.d() * o.d()}.reduced()
}

// Cmp compares r and o, returning -1, 0, or +1.
func (r Rational) Cmp(o Rational) int {
	// Cross-multiply on positive denominators preserves ordering.
	a := r.num * o.d()
	b := o.num * r.d()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether r < o.
func (r Rational) Less(o Rational) bool { return r.Cmp(o) < 0 }

// LessEq reports whether r <= o.
func (r Rational) LessEq(o Rational) bool { return r.Cmp(o) <= 0 }

// Equal reports whether r and o denote the same instant.
func (r Rational) Equal(o Rational) bool { return r.Cmp(o) == 0 }

// IsZero reports whether r is exactly zero.
func (r Rational) IsZero() bool { return r.num == 0 }

// Min returns the smaller of r and o.
func (r Rational) Min(o Rational) Rational {
	if r.Less(o) {
		return r
	}
	return o
}

// Max returns the larger of r and o.
func (r Rational) Max(o Rational) Rational {
	if o.Less(r) {
		return r
	}
	return o
}

// FloorTo returns the largest integer multiple of step that is <= r.
// Used to snap an arbitrary timestamp onto a frame grid. step must be
// positive.
func (r Rational) FloorTo(step Rational) Rational {
	if step.num <= 0 {
		panic("timecode: non-positive step")
	}
	// r/step = (r.num*step.den) / (r.den*step.num), floored toward -inf.
	n := r.num * step.d()
	d := r.d() * step.num
	q := n / d
	if n%d != 0 && (n < 0) != (d < 0) {
		q--
	}
	return Rational{num: q * step.num, den: step.d()}.reduced()
}

// Seconds returns the value as a float64. For display only - never use the
// result in comparisons.
func (r Rational) Seconds() float64 {
	return float64(r.num) / float64(r.d())
}

// String formats the value as "num/den" (or just "num" for integers).
func (r Rational) String() string {
	if r.d() == 1 {
		return fmt.Sprintf("%d", r.num)
	}
	return fmt.Sprintf("%d/%d", r.num, r.d())
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}
