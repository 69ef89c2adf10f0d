// Package config loads the auto-cache profile: how far around the playhead
// to cache, how many renders may run at once, and how work is chunked.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rodlie/autocache/internal/timecode"
)

// Profile holds the tunable caching policy.
type Profile struct {
	// PlayheadBehind and PlayheadAhead bound the default auto-cache window
	// around the playhead, in seconds.
	PlayheadBehind timecode.Rational
	PlayheadAhead  timecode.Rational

	// MaxConcurrentRenders caps how many render tickets may be in flight
	// per media type.
	MaxConcurrentRenders int

	// AudioChunk is the length of one audio render unit, in seconds.
	AudioChunk timecode.Rational

	// RequeueDelay debounces playhead movement before the auto-cache
	// window is recomputed and work re-queued.
	RequeueDelay time.Duration
}

// Default returns the profile used when no file is given.
func Default() Profile {
	return Profile{
		PlayheadBehind:       timecode.FromInt(2),
		PlayheadAhead:        timecode.FromInt(10),
		MaxConcurrentRenders: 4,
		AudioChunk:           timecode.FromInt(2),
		RequeueDelay:         250 * time.Millisecond,
	}
}

// fileProfile is the on-disk YAML shape. Rational fields are strings
// ("2", "1/2") because YAML floats would reintroduce drift.
type fileProfile struct {
	PlayheadBehind       string `yaml:"playhead_behind"`
	PlayheadAhead        string `yaml:"playhead_ahead"`
	MaxConcurrentRenders int    `yaml:"max_concurrent_renders"`
	AudioChunk           string `yaml:"audio_chunk"`
	RequeueDelayMS       int    `yaml:"requeue_delay_ms"`
}

// Load reads a profile file. Absent fields keep their defaults.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (Profile, error) {
	var fp fileProfile
	if err := yaml.Unmarshal(data, &fp); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}

	p := Default()
	if fp.PlayheadBehind != "" {
		v, err := timecode.Parse(fp.PlayheadBehind)
		if err != nil {
			return Profile{}, fmt.Errorf("playhead_behind: %w", err)
		}
		p.PlayheadBehind = v
	}
	if fp.PlayheadAhead != "" {
		v, err := timecode.Parse(fp.PlayheadAhead)
		if err != nil {
			return Profile{}, fmt.Errorf("playhead_ahead: %w", err)
		}
		p.PlayheadAhead = v
	}
	if fp.MaxConcurrentRenders > 0 {
		p.MaxConcurrentRenders = fp.MaxConcurrentRenders
	}
	if fp.AudioChunk != "" {
		v, err := timecode.Parse(fp.AudioChunk)
		if err != nil {
			return Profile{}, fmt.Errorf("audio_chunk: %w", err)
		}
		p.AudioChunk = v
	}
	if fp.RequeueDelayMS > 0 {
		p.RequeueDelay = time.Duration(fp.RequeueDelayMS) * time.Millisecond
	}
	return p, nil
}
