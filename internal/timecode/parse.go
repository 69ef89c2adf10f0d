package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a rational from "num/den" or plain integer form ("2", "-1/2",
// "1001/30000"). Float notation is rejected on purpose.
func Parse(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, fmt.Errorf("timecode: empty rational")
	}
	numStr, denStr, ok := strings.Cut(s, "/")
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("timecode: bad numerator in %q: %w", s, err)
	}
	if !ok {
		return FromInt(num), nil
	}
	den, err := strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("timecode: bad denominator in %q: %w", s, err)
	}
	if den == 0 {
		return Rational{}, fmt.Errorf("timecode: zero denominator in %q", s)
	}
	return NewRational(num, den), nil
}
