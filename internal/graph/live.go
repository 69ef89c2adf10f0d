package graph

import (
	"sync"

	"github.com/rodlie/autocache/internal/timecode"
)

// LiveGraph is the mutable, editor-facing side of the composition. Every
// mutation produces exactly one Change notification, delivered to watchers
// synchronously under the graph lock so that all watchers observe the same
// total order - the order staged edits must later replay in.
//
// Watch callbacks must not block and must not call back into the LiveGraph;
// the intended consumer hands the Change straight to its own queue.
type LiveGraph struct {
	mu       sync.Mutex
	graph    *Graph
	watchers map[int]func(Change)
	nextID   int
}

// NewLiveGraph creates an empty live graph.
func NewLiveGraph() *LiveGraph {
	return &LiveGraph{
		graph:    NewGraph(),
		watchers: make(map[int]func(Change)),
	}
}

// Watch registers a change listener and returns its cancel function.
func (lg *LiveGraph) Watch(fn func(Change)) func() {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	id := lg.nextID
	lg.nextID++
	lg.watchers[id] = fn
	return func() {
		lg.mu.Lock()
		defer lg.mu.Unlock()
		delete(lg.watchers, id)
	}
}

func (lg *LiveGraph) emit(c Change) {
	for _, fn := range lg.watchers {
		fn(c)
	}
}

// MirrorOf builds a fresh render-safe mirror of the subgraph feeding
// output, consistent with all changes emitted so far.
func (lg *LiveGraph) MirrorOf(output NodeID) *Mirror {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return NewMirror(lg.graph, output)
}

// Node returns the live node with the given ID, or nil.
func (lg *LiveGraph) Node(id NodeID) *Node {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return lg.graph.Node(id)
}

// AddNode inserts a node and notifies watchers. The staged edit carries a
// snapshot clone, so later edits to the live node cannot leak into it.
func (lg *LiveGraph) AddNode(n *Node, video, audio *timecode.TimeRange) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.graph.AddNode(n)
	lg.emit(Change{Edit: NodeAdded{Node: n.Clone()}, Video: video, Audio: audio})
}

// RemoveNode deletes a node (and its edges) and notifies watchers.
func (lg *LiveGraph) RemoveNode(id NodeID, video, audio *timecode.TimeRange) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.graph.RemoveNode(id)
	lg.emit(Change{Edit: NodeRemoved{ID: id}, Video: video, Audio: audio})
}

// Connect adds an edge and notifies watchers. No-op if either end is
// missing.
func (lg *LiveGraph) Connect(e Edge, video, audio *timecode.TimeRange) bool {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if !lg.graph.Connect(e) {
		return false
	}
	lg.emit(Change{Edit: EdgeAdded{Edge: e}, Video: video, Audio: audio})
	return true
}

// Disconnect removes an edge and notifies watchers.
func (lg *LiveGraph) Disconnect(e Edge, video, audio *timecode.TimeRange) bool {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if !lg.graph.Disconnect(e) {
		return false
	}
	lg.emit(Change{Edit: EdgeRemoved{Edge: e}, Video: video, Audio: audio})
	return true
}

// SetValue updates one input's parameter value and notifies watchers.
func (lg *LiveGraph) SetValue(in Input, v Value, video, audio *timecode.TimeRange) bool {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	n := lg.graph.Node(in.Node)
	if n == nil {
		return false
	}
	if n.Values == nil {
		n.Values = make(map[string]Value)
	}
	n.Values[in.Name] = v
	lg.emit(Change{Edit: ValueChanged{Input: in, Value: v}, Video: video, Audio: audio})
	return true
}

// SetHint updates one input's value hint and notifies watchers.
func (lg *LiveGraph) SetHint(in Input, h ValueHint, video, audio *timecode.TimeRange) bool {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	n := lg.graph.Node(in.Node)
	if n == nil {
		return false
	}
	if n.Hints == nil {
		n.Hints = make(map[string]ValueHint)
	}
	n.Hints[in.Name] = h
	lg.emit(Change{Edit: ValueHintChanged{Input: in, Hint: h}, Video: video, Audio: audio})
	return true
}
