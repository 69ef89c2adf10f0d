package graph

import "github.com/rodlie/autocache/internal/timecode"

// Edit is one staged mutation destined for a Mirror. It is a sealed union:
// each variant carries only the data needed to replay that mutation, and
// edits must be applied in the order they were queued - an edge referencing
// a not-yet-added node is meaningless.
type Edit interface {
	// apply replays the edit against the mirror. A reference to a node the
	// mirror no longer has is skipped, not an error: the live-side removal
	// that caused it is already queued behind this edit and will finish the
	// cleanup.
	apply(m *Mirror) bool

	// Kind names the edit variant for logging and traces.
	Kind() string
}

// NodeAdded stages the addition of a node. Node is a snapshot clone taken
// at notification time, so later live-side mutation cannot leak in.
type NodeAdded struct {
	Node *Node
}

func (e NodeAdded) Kind() string { return "node-added" }

func (e NodeAdded) apply(m *Mirror) bool {
	copy := e.Node.Clone()
	m.graph.AddNode(copy)
	m.copies[e.Node.ID] = copy
	return true
}

// NodeRemoved stages the removal of a node.
type NodeRemoved struct {
	ID NodeID
}

func (e NodeRemoved) Kind() string { return "node-removed" }

func (e NodeRemoved) apply(m *Mirror) bool {
	if m.copies[e.ID] == nil {
		return false
	}
	m.graph.RemoveNode(e.ID)
	delete(m.copies, e.ID)
	return true
}

// EdgeAdded stages a connection between two mirrored nodes.
type EdgeAdded struct {
	Edge Edge
}

func (e EdgeAdded) Kind() string { return "edge-added" }

func (e EdgeAdded) apply(m *Mirror) bool {
	if m.copies[e.Edge.Output] == nil || m.copies[e.Edge.To.Node] == nil {
		return false
	}
	return m.graph.Connect(e.Edge)
}

// EdgeRemoved stages a disconnection.
type EdgeRemoved struct {
	Edge Edge
}

func (e EdgeRemoved) Kind() string { return "edge-removed" }

func (e EdgeRemoved) apply(m *Mirror) bool {
	return m.graph.Disconnect(e.Edge)
}

// ValueChanged stages a single input's new parameter value.
type ValueChanged struct {
	Input Input
	Value Value
}

func (e ValueChanged) Kind() string { return "value-changed" }

func (e ValueChanged) apply(m *Mirror) bool {
	n := m.copies[e.Input.Node]
	if n == nil {
		return false
	}
	if n.Values == nil {
		n.Values = make(map[string]Value)
	}
	n.Values[e.Input.Name] = e.Value
	return true
}

// ValueHintChanged stages a single input's new value hint.
type ValueHintChanged struct {
	Input Input
	Hint  ValueHint
}

func (e ValueHintChanged) Kind() string { return "value-hint-changed" }

func (e ValueHintChanged) apply(m *Mirror) bool {
	n := m.copies[e.Input.Node]
	if n == nil {
		return false
	}
	if n.Hints == nil {
		n.Hints = make(map[string]ValueHint)
	}
	n.Hints[e.Input.Name] = e.Hint
	return true
}

// Change is one live-graph change notification: the staged edit to replay
// plus the time ranges it invalidates per media type. A nil range means the
// change does not affect that media type.
type Change struct {
	Edit  Edit
	Video *timecode.TimeRange
	Audio *timecode.TimeRange
}
