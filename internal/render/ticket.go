// Package render defines the contract between the scheduler and the worker
// pool that actually produces frames and audio: requests going out, tickets
// coming back.
package render

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rodlie/autocache/internal/graph"
	"github.com/rodlie/autocache/internal/timecode"
)

// MediaType distinguishes video from audio work.
type MediaType int

const (
	MediaVideo MediaType = iota + 1
	MediaAudio
)

func (m MediaType) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Request is one unit of work handed to the worker pool. Video work is
// addressed by Time; audio and conform work by Range. The mirror reference
// is read-only for the duration of the task.
type Request struct {
	Mirror      *graph.Mirror
	Time        timecode.Rational
	Range       timecode.TimeRange
	Media       MediaType
	Prioritize  bool
	TextureOnly bool
}

// Ticket is the handle for one outstanding asynchronous unit of work. The
// worker resolves it exactly once - with a result, or empty for a cancelled
// or failed task (the scheduler does not distinguish those two).
//
// Tickets are UUIDv7-identified so logs sort by creation time.
type Ticket struct {
	id string

	cancelled atomic.Bool

	mu           sync.Mutex
	finished     bool
	result       any
	hasResult    bool
	listeners    []func(*Ticket)
	passthroughs []*Ticket

	done chan struct{}
}

// NewTicket creates an unresolved ticket.
func NewTicket() *Ticket {
	return &Ticket{
		id:   uuid.Must(uuid.NewV7()).String(),
		done: make(chan struct{}),
	}
}

// ID returns the ticket's unique identifier.
func (t *Ticket) ID() string { return t.id }

// Resolve finishes the ticket with a result. Safe from any goroutine. A
// ticket resolves at most once; later calls are ignored (first outcome
// wins).
func (t *Ticket) Resolve(result any) {
	t.finish(result, true)
}

// ResolveEmpty finishes the ticket without a result - the outcome of a
// cancelled or failed task.
func (t *Ticket) ResolveEmpty() {
	t.finish(nil, false)
}

func (t *Ticket) finish(result any, hasResult bool) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	t.result = result
	t.hasResult = hasResult
	listeners := t.listeners
	passthroughs := t.passthroughs
	t.listeners = nil
	t.passthroughs = nil
	t.mu.Unlock()

	for _, p := range passthroughs {
		p.finish(result, hasResult)
	}
	for _, fn := range listeners {
		fn(t)
	}

	// done closes only after callbacks have run, so a goroutine that
	// waited on the ticket observes every side effect of completion.
	close(t.done)
}

// Cancel signals that the result is no longer wanted. Cooperative: workers
// poll IsCancelled and finish as soon as practical, resolving empty.
func (t *Ticket) Cancel() {
	t.cancelled.Store(true)
}

// IsCancelled reports whether Cancel was called.
func (t *Ticket) IsCancelled() bool {
	return t.cancelled.Load()
}

// Done returns a channel closed when the ticket finishes.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// WaitForFinished blocks the calling goroutine until the ticket finishes.
func (t *Ticket) WaitForFinished() { <-t.done }

// IsFinished reports whether the ticket has resolved.
func (t *Ticket) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// HasResult reports whether the ticket finished with a result.
func (t *Ticket) HasResult() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasResult
}

// Result returns the result, or nil for an empty outcome. Only meaningful
// after the ticket finishes.
func (t *Ticket) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Listen registers a completion callback. If the ticket already finished,
// the callback runs immediately on the calling goroutine. Callbacks must
// not block; the intended use is handing the completion to a queue.
func (t *Ticket) Listen(fn func(*Ticket)) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		fn(t)
		return
	}
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// AttachPassthrough resolves p with this ticket's eventual outcome. This is
// how a second request for work already in flight is satisfied without
// spawning a duplicate render.
func (t *Ticket) AttachPassthrough(p *Ticket) {
	t.mu.Lock()
	if t.finished {
		result, hasResult := t.result, t.hasResult
		t.mu.Unlock()
		p.finish(result, hasResult)
		return
	}
	t.passthroughs = append(t.passthroughs, p)
	t.mu.Unlock()
}

// Backend is the render-worker collaborator. Every method returns a ticket
// that is guaranteed to eventually finish - with a result, or empty if the
// work was cancelled or failed.
type Backend interface {
	// RenderFrame renders the video frame at req.Time.
	RenderFrame(req Request) *Ticket

	// RenderAudio renders the audio samples covering req.Range.
	RenderAudio(req Request) *Ticket

	// ConformAudio converts already-cached samples in req.Range to the
	// currently required output format.
	ConformAudio(req Request) *Ticket
}
