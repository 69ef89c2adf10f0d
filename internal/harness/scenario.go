// Package harness runs declarative caching scenarios: a YAML file
// describes a sequence, a series of editing operations, and the harness
// drives the scheduler deterministically, recording every scheduling
// decision as a trace that golden files pin down.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rodlie/autocache/internal/config"
	"github.com/rodlie/autocache/internal/timecode"
)

// Scenario is one declarative caching test case.
type Scenario struct {
	// Name uniquely identifies the scenario; the golden file is named
	// after it.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Format describes the sequence under test.
	Format FormatSpec `yaml:"format"`

	// Profile overrides scheduling parameters. Absent fields keep the
	// defaults.
	Profile *ProfileSpec `yaml:"profile,omitempty"`

	// Level gives the initial keyframes of the sequence's one animated
	// parameter. A single entry means a constant value.
	Level []KeyframeSpec `yaml:"level"`

	// Steps is the operation script.
	Steps []Step `yaml:"steps"`
}

// FormatSpec mirrors the sequence parameters, with rationals as strings.
type FormatSpec struct {
	Timebase    string `yaml:"timebase"`
	Duration    string `yaml:"duration"`
	AudioFormat string `yaml:"audio_format"`
}

// ProfileSpec overrides config.Profile fields.
type ProfileSpec struct {
	PlayheadBehind       string `yaml:"playhead_behind,omitempty"`
	PlayheadAhead        string `yaml:"playhead_ahead,omitempty"`
	MaxConcurrentRenders int    `yaml:"max_concurrent_renders,omitempty"`
	AudioChunk           string `yaml:"audio_chunk,omitempty"`
	RequeueDelayMS       int    `yaml:"requeue_delay_ms,omitempty"`
}

// KeyframeSpec is one keyframe of the level parameter.
type KeyframeSpec struct {
	Time  string `yaml:"time"`
	Level int64  `yaml:"level"`
}

// Step is one scripted operation. Op selects the operation; the other
// fields apply where meaningful.
//
// Ops: attach, detach, drain, pause, resume, playhead, force_range,
// clear_force_range, audio_format, invalidate, single_frame.
type Step struct {
	Op     string `yaml:"op"`
	Media  string `yaml:"media,omitempty"`  // invalidate: video, audio, or both
	Time   string `yaml:"time,omitempty"`   // playhead, single_frame
	Start  string `yaml:"start,omitempty"`  // invalidate, force_range
	End    string `yaml:"end,omitempty"`    // invalidate, force_range
	Level  *int64 `yaml:"level,omitempty"`  // invalidate: new parameter value
	Format string `yaml:"format,omitempty"` // audio_format
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: missing name", path)
	}
	if len(sc.Level) == 0 {
		return nil, fmt.Errorf("scenario %s: missing level keyframes", path)
	}
	return &sc, nil
}

// profile resolves the scenario's overrides against the defaults.
func (sc *Scenario) profile() (config.Profile, error) {
	p := config.Default()
	spec := sc.Profile
	if spec == nil {
		return p, nil
	}
	if err := overrideRational(&p.PlayheadBehind, spec.PlayheadBehind); err != nil {
		return p, fmt.Errorf("playhead_behind: %w", err)
	}
	if err := overrideRational(&p.PlayheadAhead, spec.PlayheadAhead); err != nil {
		return p, fmt.Errorf("playhead_ahead: %w", err)
	}
	if err := overrideRational(&p.AudioChunk, spec.AudioChunk); err != nil {
		return p, fmt.Errorf("audio_chunk: %w", err)
	}
	if spec.MaxConcurrentRenders > 0 {
		p.MaxConcurrentRenders = spec.MaxConcurrentRenders
	}
	if spec.RequeueDelayMS > 0 {
		p.RequeueDelay = millis(spec.RequeueDelayMS)
	}
	return p, nil
}

func overrideRational(dst *timecode.Rational, s string) error {
	if s == "" {
		return nil
	}
	v, err := timecode.Parse(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
