// Package cacher implements the background auto-caching scheduler: it
// watches the live composition graph, tracks which time ranges of video and
// audio are dirty, and keeps the frame cache converging toward the current
// graph without ever blocking an interactive caller.
//
// Concurrency model: one scheduling goroutine owns every piece of mutable
// scheduler state - dirty-range sets, ledgers, the graph mirror, ticket
// bookkeeping. External API calls and worker completions enter that
// goroutine as serialized events; render, hash, and cache-write work runs
// on worker goroutines that communicate back only through those events.
// The scheduling goroutine itself never blocks on render work.
package cacher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rodlie/autocache/internal/config"
	"github.com/rodlie/autocache/internal/graph"
	"github.com/rodlie/autocache/internal/ledger"
	"github.com/rodlie/autocache/internal/render"
	"github.com/rodlie/autocache/internal/timecode"
)

// AutoCacher dynamically caches a sequence in the background around the
// playhead, while serving prioritized single-frame requests.
type AutoCacher struct {
	profile config.Profile
	backend render.Backend
	store   FrameStore
	trace   TraceFunc

	queue *eventQueue

	paused atomic.Bool

	// Everything below is owned by the scheduling goroutine.

	viewer  *Viewer
	mirror  *graph.Mirror
	unwatch func()

	playhead    timecode.Rational
	cacheRange  timecode.TimeRange
	hasWindow   bool
	customRange *timecode.TimeRange

	dirtyVideo timecode.RangeSet
	dirtyAudio timecode.RangeSet

	videoLedger *ledger.Ledger
	audioLedger *ledger.Ledger

	// Ticket registry: in-flight work keyed by ticket ID, with a
	// per-(time, texture-only) index for video dedup.
	videoTasks map[string]*videoTask
	videoByKey map[string]*videoTask
	audioTasks map[string]*audioTask

	hashTasks     *taskSet[*hashTask]
	downloadTasks *taskSet[*downloadTask]

	// hashPending marks frame times with a hash batch in flight;
	// hashKnown remembers computed hashes awaiting a render slot.
	hashPending map[string]bool
	hashKnown   map[string]hashInfo

	// singleFrame is the queued-but-undispatched interactive request.
	// A newer request supersedes it.
	singleFrame *evSingleFrame

	conformPending timecode.RangeSet
	audioCached    timecode.RangeSet
	audioFormat    string

	requeueTimer *time.Timer
}

// TraceFunc observes scheduling decisions. Used by the conformance harness
// and the CLI; nil disables tracing.
type TraceFunc func(TraceEvent)

// Option configures an AutoCacher.
type Option func(*AutoCacher)

// WithTrace installs a scheduling-decision observer. The function is called
// from the scheduling goroutine and must not call back into the cacher.
func WithTrace(fn TraceFunc) Option {
	return func(c *AutoCacher) { c.trace = fn }
}

// New creates an AutoCacher. The backend renders; the store persists.
// Nothing happens until a viewer is attached and the event loop runs (Run,
// or Step/Settle for deterministic drivers).
func New(backend render.Backend, store FrameStore, profile config.Profile, opts ...Option) *AutoCacher {
	c := &AutoCacher{
		profile:       profile,
		backend:       backend,
		store:         store,
		queue:         newEventQueue(),
		videoLedger:   ledger.New(),
		audioLedger:   ledger.New(),
		videoTasks:    make(map[string]*videoTask),
		videoByKey:    make(map[string]*videoTask),
		audioTasks:    make(map[string]*audioTask),
		hashTasks:     newTaskSet(func(t *hashTask) *render.Ticket { return t.ticket }),
		downloadTasks: newTaskSet(func(t *downloadTask) *render.Ticket { return t.ticket }),
		hashPending:   make(map[string]bool),
		hashKnown:     make(map[string]hashInfo),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run starts the scheduling loop. Blocks until ctx is cancelled or Stop is
// called. Must be called from exactly one goroutine.
func (c *AutoCacher) Run(ctx context.Context) error {
	slog.Info("autocacher starting")

	for {
		if e, ok := c.queue.tryDequeue(); ok {
			c.process(e)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("autocacher stopping: context cancelled")
			c.queue.close()
			return ctx.Err()

		case <-c.queue.wait():
			// A leftover wakeup token can fire with an empty queue;
			// only a closed-and-drained queue ends the loop.
			if c.queue.isClosed() && c.queue.len() == 0 {
				slog.Info("autocacher stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the event queue, causing Run to return after draining.
func (c *AutoCacher) Stop() {
	c.queue.close()
}

// Step processes one queued event on the calling goroutine. Returns false
// if the queue was empty. For test drivers and tools that want
// deterministic stepping instead of Run.
func (c *AutoCacher) Step() bool {
	e, ok := c.queue.tryDequeue()
	if !ok {
		return false
	}
	c.process(e)
	return true
}

// Settle processes queued events until the queue is empty. The same
// single-goroutine rule as Run applies: never call concurrently with Run or
// another Settle.
func (c *AutoCacher) Settle() {
	for c.Step() {
	}
}

// QueueLen returns the number of unprocessed events.
func (c *AutoCacher) QueueLen() int { return c.queue.len() }

// SetViewer attaches a viewer for auto-caching, replacing any previous one.
// Passing nil detaches. The whole sequence is considered dirty on attach.
func (c *AutoCacher) SetViewer(v *Viewer) {
	c.queue.enqueue(evSetViewer{viewer: v})
}

// GetSingleFrame requests one video frame, ahead of all background work.
// The returned ticket resolves with the rendered frame, or empty if the
// request was superseded by a newer one or cancelled.
func (c *AutoCacher) GetSingleFrame(t timecode.Rational, prioritize bool) *render.Ticket {
	ticket := render.NewTicket()
	c.queue.enqueue(evSingleFrame{time: t, prioritize: prioritize, ticket: ticket})
	return ticket
}

// IsPaused reports whether auto-caching is paused.
func (c *AutoCacher) IsPaused() bool { return c.paused.Load() }

// SetPaused pauses or resumes auto-caching. Pausing stops dispatch of new
// background work; tickets already in flight run to completion and commit
// normally, and single-frame requests are still served. Resuming
// re-evaluates all dirty ranges.
func (c *AutoCacher) SetPaused(paused bool) {
	c.queue.enqueue(evSetPaused{paused: paused})
}

// ForceCacheRange overrides the playhead-relative window with an explicit
// range to cache (e.g. the whole sequence, or an in/out selection).
func (c *AutoCacher) ForceCacheRange(r timecode.TimeRange) {
	c.queue.enqueue(evForceRange{r: r})
}

// ClearForceCacheRange returns to the default playhead-relative window.
func (c *AutoCacher) ClearForceCacheRange() {
	c.queue.enqueue(evForceRange{clear: true})
}

// SetPlayhead moves the playhead. The auto-cache window follows after the
// profile's requeue delay, debouncing scrubbing.
func (c *AutoCacher) SetPlayhead(t timecode.Rational) {
	c.queue.enqueue(evSetPlayhead{playhead: t})
}

// SetAudioFormat changes the sample format playback requires. Cached audio
// in the old format is queued for conform.
func (c *AutoCacher) SetAudioFormat(format string) {
	c.queue.enqueue(evSetAudioFormat{format: format})
}

// CancelVideoTasks signals cancel to every outstanding video task. The
// workers finish without a result as soon as practical; nothing is
// committed. With wait, blocks until all of them have drained. Must not be
// called from the scheduling goroutine when wait is set.
func (c *AutoCacher) CancelVideoTasks(wait bool) {
	c.cancelMedia(render.MediaVideo, wait)
}

// CancelAudioTasks is CancelVideoTasks for audio and conform tasks.
func (c *AutoCacher) CancelAudioTasks(wait bool) {
	c.cancelMedia(render.MediaAudio, wait)
}

func (c *AutoCacher) cancelMedia(media render.MediaType, wait bool) {
	reply := make(chan []*render.Ticket, 1)
	if !c.queue.enqueue(evCancelMedia{media: media, reply: reply}) {
		return
	}
	if !wait {
		return
	}
	// The loop can shut down after the enqueue but before the event is
	// processed; a closed queue means no reply is coming.
	select {
	case tickets := <-reply:
		for _, t := range tickets {
			t.WaitForFinished()
		}
	case <-c.queue.doneCh():
	}
}

// WaitForHashesToFinish blocks the calling goroutine until every currently
// tracked hash task has signaled completion. Tasks are not removed by
// waiting - the completion handler removes them when it runs.
func (c *AutoCacher) WaitForHashesToFinish() {
	for _, t := range c.hashTasks.tickets() {
		t.WaitForFinished()
	}
}

// WaitForVideoDownloadsToFinish blocks until every in-flight frame cache
// write has finished. Intended for orderly shutdown.
func (c *AutoCacher) WaitForVideoDownloadsToFinish() {
	for _, t := range c.downloadTasks.tickets() {
		t.WaitForFinished()
	}
}

func (c *AutoCacher) emitTrace(ev TraceEvent) {
	if c.trace != nil {
		c.trace(ev)
	}
}
