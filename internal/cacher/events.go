package cacher

import (
	"sync"

	"github.com/rodlie/autocache/internal/graph"
	"github.com/rodlie/autocache/internal/render"
	"github.com/rodlie/autocache/internal/timecode"
)

// event is one unit of work for the scheduling loop. It is a sealed union:
// external API calls and task completions both enter the loop as events, so
// every state mutation happens on the one goroutine that runs the loop.
type event interface {
	isEvent()
}

// evGraphChange carries one live-graph change notification.
type evGraphChange struct {
	change graph.Change
}

// evSetViewer attaches a new viewer (nil detaches).
type evSetViewer struct {
	viewer *Viewer
}

// evSingleFrame is an interactive single-frame request. The ticket was
// handed to the caller already; it resolves from the dispatched render's
// outcome, or empty if superseded.
type evSingleFrame struct {
	time       timecode.Rational
	prioritize bool
	ticket     *render.Ticket
}

// evSetPaused toggles auto-caching.
type evSetPaused struct {
	paused bool
}

// evForceRange sets (or, with clear, removes) the custom cache range.
type evForceRange struct {
	r     timecode.TimeRange
	clear bool
}

// evSetPlayhead moves the playhead and recomputes the auto-cache window.
type evSetPlayhead struct {
	playhead timecode.Rational
}

// evRequeue fires when the playhead debounce timer expires.
type evRequeue struct{}

// evCancelMedia cancels all in-flight tasks of one media type. The reply
// channel receives the cancelled tickets so the caller can optionally wait
// for them to drain outside the loop.
type evCancelMedia struct {
	media render.MediaType
	reply chan []*render.Ticket
}

// evSetAudioFormat changes the required playback sample format, seeding the
// conform queue with every cached audio range.
type evSetAudioFormat struct {
	format string
}

// evHashesDone reports a finished hash batch.
type evHashesDone struct {
	task *hashTask
}

// evVideoRendered reports a finished video frame render.
type evVideoRendered struct {
	task *videoTask
}

// evAudioRendered reports a finished audio render or conform pass.
type evAudioRendered struct {
	task *audioTask
}

// evVideoDownloaded reports a finished cache write of a rendered frame.
type evVideoDownloaded struct {
	task *downloadTask
}

func (evGraphChange) isEvent()     {}
func (evSetViewer) isEvent()       {}
func (evSingleFrame) isEvent()     {}
func (evSetPaused) isEvent()       {}
func (evForceRange) isEvent()      {}
func (evSetPlayhead) isEvent()     {}
func (evRequeue) isEvent()         {}
func (evCancelMedia) isEvent()     {}
func (evSetAudioFormat) isEvent()  {}
func (evHashesDone) isEvent()      {}
func (evVideoRendered) isEvent()   {}
func (evAudioRendered) isEvent()   {}
func (evVideoDownloaded) isEvent() {}

// eventQueue is a thread-safe FIFO for loop events. Unbounded so that a
// burst of graph-change notifications or completions never blocks the
// notifier; a buffered-1 signal channel coalesces wakeups for the loop.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 64),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue adds an event. Safe from any goroutine. Returns false if the
// queue is closed.
func (q *eventQueue) enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue removes the front event without blocking.
func (q *eventQueue) tryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil, false
	}
	e := q.events[0]
	q.events[0] = nil // release for GC
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// wait returns the wakeup channel for select-based waiting.
func (q *eventQueue) wait() <-chan struct{} { return q.signal }

// doneCh is closed when the queue closes. For callers blocked on a reply
// from an event that may never be processed.
func (q *eventQueue) doneCh() <-chan struct{} { return q.done }

func (q *eventQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// close marks the queue closed and wakes all waiters.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
	close(q.done)
}
