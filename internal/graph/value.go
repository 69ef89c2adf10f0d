package graph

import "github.com/rodlie/autocache/internal/timecode"

// Value is a sealed parameter value for a node input. Only the variants in
// this file implement it. There is no float variant - parameters that feed
// content hashing must be exactly representable.
type Value interface {
	value()

	// Payload returns the canonical-serialization form of the value as
	// evaluated at time t. For every variant except Keyframed the result is
	// independent of t.
	Payload(t timecode.Rational) any
}

// String is a string parameter.
type String string

func (String) value() {}

func (v String) Payload(timecode.Rational) any { return string(v) }

// Int is an integer parameter.
type Int int64

func (Int) value() {}

func (v Int) Payload(timecode.Rational) any { return int64(v) }

// Bool is a boolean parameter.
type Bool bool

func (Bool) value() {}

func (v Bool) Payload(timecode.Rational) any { return bool(v) }

// Rat is an exact rational parameter (durations, speeds, offsets).
type Rat timecode.Rational

func (Rat) value() {}

func (v Rat) Payload(timecode.Rational) any {
	r := timecode.Rational(v)
	return map[string]any{"num": r.Num(), "den": r.Den()}
}

// Keyframe pairs a time with the value that takes effect there.
type Keyframe struct {
	Time  timecode.Rational
	Value Value
}

// Keyframed is a step-interpolated parameter: the value active at time t is
// the one set by the last keyframe at or before t. Before the first
// keyframe the first keyframe's value applies.
//
// Step interpolation keeps frames content-identical between keyframes, which
// is what lets the content-addressed cache deduplicate them.
type Keyframed struct {
	frames []Keyframe
}

func (Keyframed) value() {}

// NewKeyframed creates a keyframed value. Keyframes must be given in
// ascending time order and must not be empty.
func NewKeyframed(frames ...Keyframe) Keyframed {
	if len(frames) == 0 {
		panic("graph: keyframed value with no keyframes")
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].Time.LessEq(frames[i-1].Time) {
			panic("graph: keyframes out of order")
		}
	}
	owned := make([]Keyframe, len(frames))
	copy(owned, frames)
	return Keyframed{frames: owned}
}

// At returns the value in effect at time t.
func (v Keyframed) At(t timecode.Rational) Value {
	active := v.frames[0].Value
	for _, kf := range v.frames[1:] {
		if t.Less(kf.Time) {
			break
		}
		active = kf.Value
	}
	return active
}

func (v Keyframed) Payload(t timecode.Rational) any {
	return v.At(t).Payload(t)
}

// ValueHint is advisory metadata attached to an input - how downstream
// wants the value interpreted (pixel format, colorspace tag, and so on).
// Hints do affect rendered output, so they participate in content hashing.
type ValueHint struct {
	Type string
	Tag  string
}

func (h ValueHint) payload() any {
	return map[string]any{"type": h.Type, "tag": h.Tag}
}
