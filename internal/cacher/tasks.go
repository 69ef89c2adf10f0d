package cacher

import (
	"sync"

	"github.com/rodlie/autocache/internal/graph"
	"github.com/rodlie/autocache/internal/ledger"
	"github.com/rodlie/autocache/internal/render"
	"github.com/rodlie/autocache/internal/timecode"
)

// videoTask is one in-flight video frame render.
type videoTask struct {
	ticket      *render.Ticket
	mirror      *graph.Mirror
	time        timecode.Rational
	hash        string
	gen         ledger.Generation
	textureOnly bool
}

// audioTask is one in-flight audio render, or a conform pass when conform
// is set.
type audioTask struct {
	ticket  *render.Ticket
	mirror  *graph.Mirror
	r       timecode.TimeRange
	gen     ledger.Generation
	conform bool
}

// downloadTask is one in-flight cache write of a rendered frame.
type downloadTask struct {
	ticket *render.Ticket
	time   timecode.Rational
	hash   string
	gen    ledger.Generation
}

// hashResult is one time's outcome from a hash batch.
type hashResult struct {
	time   timecode.Rational
	hash   string
	exists bool
}

// hashTask is one in-flight hash batch: content hashes for a set of times
// computed against the mirror the task borrowed at dispatch.
type hashTask struct {
	ticket *render.Ticket
	mirror *graph.Mirror
	times  []timecode.Rational
	gens   []ledger.Generation // dispatch-time stamp per time
}

// hashInfo is a computed-but-not-yet-rendered content hash for a frame
// time, remembered so the render can be dispatched on a later scheduling
// round without re-hashing.
type hashInfo struct {
	time timecode.Rational
	hash string
	gen  ledger.Generation
}

// taskSet tracks in-flight tasks by ticket ID. The scheduling loop mutates
// it; external Wait callers snapshot it, so unlike the loop-owned maps it
// carries a mutex. Waiting on the snapshot does not remove entries - the
// completion handler does, and a handler whose task was detached first
// skips its side effects.
type taskSet[T any] struct {
	mu     sync.Mutex
	items  map[string]T
	ticket func(T) *render.Ticket
}

func newTaskSet[T any](ticket func(T) *render.Ticket) *taskSet[T] {
	return &taskSet[T]{items: make(map[string]T), ticket: ticket}
}

func (s *taskSet[T]) add(id string, t T) {
	s.mu.Lock()
	s.items[id] = t
	s.mu.Unlock()
}

// detach removes a task, reporting whether it was still tracked. The
// completion handler calls this and treats false as "suppress side
// effects".
func (s *taskSet[T]) detach(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

func (s *taskSet[T]) detachAll() {
	s.mu.Lock()
	s.items = make(map[string]T)
	s.mu.Unlock()
}

// anyMatch reports whether any tracked task satisfies pred.
func (s *taskSet[T]) anyMatch(pred func(T) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.items {
		if pred(t) {
			return true
		}
	}
	return false
}

func (s *taskSet[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// tickets returns a snapshot of the in-flight tickets for waiting or
// cancelling.
func (s *taskSet[T]) tickets() []*render.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*render.Ticket, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, s.ticket(t))
	}
	return out
}

// key builds the in-flight dedup key for a video frame request. Texture-only
// and full renders of the same time are distinct work.
func key(t timecode.Rational, textureOnly bool) string {
	if textureOnly {
		return t.String() + "|tex"
	}
	return t.String() + "|full"
}
