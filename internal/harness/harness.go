package harness

import (
	"fmt"
	"time"

	"github.com/rodlie/autocache/internal/cacher"
	"github.com/rodlie/autocache/internal/config"
	"github.com/rodlie/autocache/internal/graph"
	"github.com/rodlie/autocache/internal/testutil"
	"github.com/rodlie/autocache/internal/timecode"
)

const (
	outputNode = graph.NodeID("seq")
	levelInput = "level"

	// drainRounds bounds the settle loop; a scenario that has not gone
	// quiet by then is stuck.
	drainRounds = 200
)

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Runner executes one scenario against a scheduler wired to scripted
// collaborators. All stepping happens on the calling goroutine, so the
// recorded trace is deterministic.
type Runner struct {
	scenario *Scenario
	profile  config.Profile

	lg      *graph.LiveGraph
	backend *testutil.FakeBackend
	store   *testutil.MemStore
	ac      *cacher.AutoCacher
	viewer  *cacher.Viewer

	trace []cacher.TraceEvent
}

// NewRunner builds the scheduler and sequence a scenario describes.
func NewRunner(sc *Scenario) (*Runner, error) {
	profile, err := sc.profile()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	timebase, err := timecode.Parse(sc.Format.Timebase)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: timebase: %w", sc.Name, err)
	}
	duration, err := timecode.Parse(sc.Format.Duration)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: duration: %w", sc.Name, err)
	}

	level, err := levelValue(sc.Level)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	lg := graph.NewLiveGraph()
	lg.AddNode(&graph.Node{
		ID:     outputNode,
		Kind:   "sequence",
		Values: map[string]graph.Value{levelInput: level},
	}, nil, nil)

	r := &Runner{
		scenario: sc,
		profile:  profile,
		lg:       lg,
		backend:  testutil.NewFakeBackend(),
		store:    testutil.NewMemStore(),
		viewer: &cacher.Viewer{
			Graph:  lg,
			Output: outputNode,
			Format: cacher.Format{
				Timebase:    timebase,
				Duration:    duration,
				AudioFormat: sc.Format.AudioFormat,
			},
		},
	}
	r.ac = cacher.New(r.backend, r.store, profile, cacher.WithTrace(func(ev cacher.TraceEvent) {
		r.trace = append(r.trace, ev)
	}))
	return r, nil
}

func levelValue(frames []KeyframeSpec) (graph.Value, error) {
	if len(frames) == 1 {
		return graph.Int(frames[0].Level), nil
	}
	kfs := make([]graph.Keyframe, len(frames))
	for i, f := range frames {
		t, err := timecode.Parse(f.Time)
		if err != nil {
			return nil, fmt.Errorf("keyframe %d: %w", i, err)
		}
		kfs[i] = graph.Keyframe{Time: t, Value: graph.Int(f.Level)}
	}
	return graph.NewKeyframed(kfs...), nil
}

// Store exposes the in-memory cache for final-state assertions.
func (r *Runner) Store() *testutil.MemStore { return r.store }

// Trace returns the recorded scheduling decisions.
func (r *Runner) Trace() []cacher.TraceEvent { return r.trace }

// Run executes every step in order.
func (r *Runner) Run() error {
	for i, step := range r.scenario.Steps {
		if err := r.runStep(step); err != nil {
			return fmt.Errorf("scenario %s: step %d (%s): %w", r.scenario.Name, i, step.Op, err)
		}
	}
	return nil
}

func (r *Runner) runStep(step Step) error {
	switch step.Op {
	case "attach":
		r.ac.SetViewer(r.viewer)
		r.ac.Settle()

	case "detach":
		r.ac.SetViewer(nil)
		r.ac.Settle()

	case "drain":
		return r.drain()

	case "pause":
		r.ac.SetPaused(true)
		r.ac.Settle()

	case "resume":
		r.ac.SetPaused(false)
		r.ac.Settle()

	case "playhead":
		t, err := timecode.Parse(step.Time)
		if err != nil {
			return err
		}
		r.ac.SetPlayhead(t)
		r.ac.Settle()
		// Outwait the debounce so the requeue lands before the next step.
		time.Sleep(r.profile.RequeueDelay + 50*time.Millisecond)
		r.ac.Settle()

	case "force_range":
		rng, err := parseRange(step.Start, step.End)
		if err != nil {
			return err
		}
		r.ac.ForceCacheRange(rng)
		r.ac.Settle()

	case "clear_force_range":
		r.ac.ClearForceCacheRange()
		r.ac.Settle()

	case "audio_format":
		r.ac.SetAudioFormat(step.Format)
		r.ac.Settle()

	case "invalidate":
		return r.invalidate(step)

	case "single_frame":
		t, err := timecode.Parse(step.Time)
		if err != nil {
			return err
		}
		r.ac.GetSingleFrame(t, true)
		r.ac.Settle()

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func (r *Runner) invalidate(step Step) error {
	rng, err := parseRange(step.Start, step.End)
	if err != nil {
		return err
	}
	if step.Level == nil {
		return fmt.Errorf("invalidate: missing level")
	}

	var video, audio *timecode.TimeRange
	switch step.Media {
	case "video":
		video = &rng
	case "audio":
		audio = &rng
	case "both":
		video, audio = &rng, &rng
	default:
		return fmt.Errorf("invalidate: bad media %q", step.Media)
	}

	in := graph.Input{Node: outputNode, Name: levelInput}
	if !r.lg.SetValue(in, graph.Int(*step.Level), video, audio) {
		return fmt.Errorf("invalidate: set value failed")
	}
	r.ac.Settle()
	return nil
}

func parseRange(start, end string) (timecode.TimeRange, error) {
	s, err := timecode.Parse(start)
	if err != nil {
		return timecode.TimeRange{}, fmt.Errorf("start: %w", err)
	}
	e, err := timecode.Parse(end)
	if err != nil {
		return timecode.TimeRange{}, fmt.Errorf("end: %w", err)
	}
	return timecode.NewRange(s, e), nil
}

// drain settles the scheduler to quiescence. Outstanding work resolves one
// ticket at a time in dispatch order, with hash batches and cache writes
// waited out between resolutions, so the resulting event order does not
// depend on goroutine scheduling.
func (r *Runner) drain() error {
	for round := 0; round < drainRounds; round++ {
		r.settleAsync()

		work := r.backend.Unresolved()
		if len(work) == 0 && r.ac.QueueLen() == 0 {
			return nil
		}
		for _, w := range work {
			w.Ticket.Resolve(payloadFor(w))
			r.ac.Settle()
			r.settleAsync()
		}
	}
	return fmt.Errorf("drain: still busy after %d rounds", drainRounds)
}

// settleAsync flushes the asynchronous stages: hash batches and frame
// cache writes.
func (r *Runner) settleAsync() {
	for {
		r.ac.Settle()
		r.ac.WaitForHashesToFinish()
		r.ac.WaitForVideoDownloadsToFinish()
		if r.ac.QueueLen() == 0 {
			return
		}
	}
}

func payloadFor(w *testutil.PendingWork) []byte {
	switch w.Kind {
	case "audio":
		return []byte("samples " + w.Req.Range.String())
	case "conform":
		return []byte("conformed " + w.Req.Range.String())
	default:
		return []byte("pixels " + w.Req.Time.String())
	}
}
