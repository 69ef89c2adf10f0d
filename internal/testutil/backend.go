// Package testutil provides the scripted collaborators the scheduler tests
// and the conformance harness drive: a render backend whose tickets the
// test resolves by hand, and an in-memory frame store.
package testutil

import (
	"sync"

	"github.com/rodlie/autocache/internal/render"
)

// PendingWork is one dispatched request plus the ticket the test resolves.
type PendingWork struct {
	Req    render.Request
	Ticket *render.Ticket
	Kind   string // "frame", "audio", or "conform"
}

// FakeBackend implements render.Backend by recording every request and
// leaving its ticket unresolved until the test decides the outcome. This
// makes scheduling decisions observable step by step: dispatch, resolve,
// settle, assert.
type FakeBackend struct {
	mu      sync.Mutex
	pending []*PendingWork
	auto    func(render.Request) (any, bool)
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

// AutoResolve makes every subsequent ticket resolve immediately at dispatch
// with fn's outcome. Used by the harness, where manual resolution would be
// noise.
func (b *FakeBackend) AutoResolve(fn func(render.Request) (any, bool)) {
	b.mu.Lock()
	b.auto = fn
	b.mu.Unlock()
}

// RenderFrame implements render.Backend.
func (b *FakeBackend) RenderFrame(req render.Request) *render.Ticket {
	return b.record(req, "frame")
}

// RenderAudio implements render.Backend.
func (b *FakeBackend) RenderAudio(req render.Request) *render.Ticket {
	return b.record(req, "audio")
}

// ConformAudio implements render.Backend.
func (b *FakeBackend) ConformAudio(req render.Request) *render.Ticket {
	return b.record(req, "conform")
}

func (b *FakeBackend) record(req render.Request, kind string) *render.Ticket {
	w := &PendingWork{Req: req, Ticket: render.NewTicket(), Kind: kind}

	b.mu.Lock()
	b.pending = append(b.pending, w)
	auto := b.auto
	b.mu.Unlock()

	if auto != nil {
		if result, ok := auto(req); ok {
			w.Ticket.Resolve(result)
		} else {
			w.Ticket.ResolveEmpty()
		}
	}
	return w.Ticket
}

// Pending returns a snapshot of all recorded work, resolved or not, in
// dispatch order.
func (b *FakeBackend) Pending() []*PendingWork {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*PendingWork, len(b.pending))
	copy(out, b.pending)
	return out
}

// Unresolved returns the recorded work whose tickets have not finished.
func (b *FakeBackend) Unresolved() []*PendingWork {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*PendingWork
	for _, w := range b.pending {
		if !w.Ticket.IsFinished() {
			out = append(out, w)
		}
	}
	return out
}

// UnresolvedOfKind filters Unresolved by work kind.
func (b *FakeBackend) UnresolvedOfKind(kind string) []*PendingWork {
	var out []*PendingWork
	for _, w := range b.Unresolved() {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// ResolveAll finishes every unresolved ticket with the given payload.
func (b *FakeBackend) ResolveAll(payload []byte) {
	for _, w := range b.Unresolved() {
		w.Ticket.Resolve(payload)
	}
}

// DispatchCount returns how many requests of the kind were recorded.
func (b *FakeBackend) DispatchCount(kind string) int {
	n := 0
	for _, w := range b.Pending() {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
