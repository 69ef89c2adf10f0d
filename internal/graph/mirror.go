package graph

import (
	"log/slog"
	"sync"

	"github.com/rodlie/autocache/internal/timecode"
)

// Mirror is the render-safe copy of the subgraph feeding a viewer output.
//
// Ownership model: the scheduling goroutine owns the mirror. Render and
// hash tasks borrow it read-only for their duration (Borrow/Release), and
// the owner never applies staged edits while a borrow is outstanding. That
// single rule - not a lock - is what makes concurrent reads safe. The only
// method callable from other goroutines is Enqueue.
//
// The mirror trails the live graph by exactly the contents of its pending
// queue: bounded, observable, and applied all-or-nothing in arrival order.
type Mirror struct {
	graph  *Graph
	output NodeID

	// copies resolves a live node reference to the mirror's counterpart and
	// doubles as the existence check during edit replay.
	copies map[NodeID]*Node

	mu      sync.Mutex
	pending []Edit

	borrows int
}

// NewMirror deep-copies the subgraph reachable from output. Call it when a
// viewer is attached; build a fresh mirror (rather than editing) when the
// viewer itself changes.
func NewMirror(live *Graph, output NodeID) *Mirror {
	m := &Mirror{
		graph:  live.CopyUpstream(output),
		output: output,
		copies: make(map[NodeID]*Node),
	}
	for id := range m.graph.nodes {
		m.copies[id] = m.graph.nodes[id]
	}
	return m
}

// Output returns the mirrored viewer output node ID.
func (m *Mirror) Output() NodeID { return m.output }

// Graph exposes the mirrored graph for render and hash tasks. Callers must
// hold a borrow for as long as they read it.
func (m *Mirror) Graph() *Graph { return m.graph }

// Enqueue appends a staged edit. Never blocks; safe from any goroutine.
func (m *Mirror) Enqueue(e Edit) {
	m.mu.Lock()
	m.pending = append(m.pending, e)
	m.mu.Unlock()
}

// PendingCount returns the number of staged edits not yet applied.
func (m *Mirror) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Borrow marks the start of a read by a render or hash task. Scheduling
// goroutine only.
func (m *Mirror) Borrow() {
	m.borrows++
}

// Release marks the end of a read. Scheduling goroutine only.
func (m *Mirror) Release() {
	if m.borrows == 0 {
		panic("graph: mirror release without borrow")
	}
	m.borrows--
}

// Borrowed reports whether any task currently holds the mirror.
func (m *Mirror) Borrowed() bool { return m.borrows > 0 }

// TryApplyPending replays the entire staged-edit queue, in order, iff no
// borrow is outstanding. Returns false (leaving the queue intact) while any
// task still holds the mirror; the caller retries on the next completion.
//
// An edit whose reference dangles - its target removed by a live-side
// deletion the mirror has not caught up with - is skipped silently; the
// removal edit queued behind it completes the cleanup.
func (m *Mirror) TryApplyPending() bool {
	if m.borrows > 0 {
		return false
	}

	m.mu.Lock()
	edits := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, e := range edits {
		if !e.apply(m) {
			slog.Debug("skipped dangling graph edit", "kind", e.Kind())
		}
	}
	return true
}

// FramePayload returns the canonical content payload for the frame at time
// t, ready for fingerprinting. Callers must hold a borrow.
func (m *Mirror) FramePayload(t timecode.Rational) map[string]any {
	return m.graph.framePayload(m.output, t)
}
