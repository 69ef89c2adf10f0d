// Package graph holds the dependency-graph model shared by the live editing
// side and the render-safe mirror, plus the staged-edit machinery that keeps
// the two consistent without ever mutating a graph a render task is reading.
package graph

import "github.com/rodlie/autocache/internal/timecode"

// NodeID identifies a node. IDs are stable across the live graph and its
// mirror - the mirror's copy of a node keeps the live node's ID, which is
// what lets staged edits resolve live references to mirror nodes.
type NodeID string

// Input names one input port on a node.
type Input struct {
	Node NodeID
	Name string
}

// Edge connects the output of one node to an input port of another.
type Edge struct {
	Output NodeID
	To     Input
}

// Node is one processing step in the composition. Values hold the
// parameters per input port; Hints hold advisory metadata per input port.
type Node struct {
	ID     NodeID
	Kind   string
	Values map[string]Value
	Hints  map[string]ValueHint
}

// Clone returns a deep copy of the node. Value variants are immutable once
// constructed, so sharing them between copies is safe; the maps are not.
func (n *Node) Clone() *Node {
	c := &Node{ID: n.ID, Kind: n.Kind}
	if n.Values != nil {
		c.Values = make(map[string]Value, len(n.Values))
		for k, v := range n.Values {
			c.Values[k] = v
		}
	}
	if n.Hints != nil {
		c.Hints = make(map[string]ValueHint, len(n.Hints))
		for k, v := range n.Hints {
			c.Hints[k] = v
		}
	}
	return c
}

// Graph is a set of nodes and the edges connecting them. It is a plain data
// structure with no internal locking; ownership rules (live side vs mirror)
// are enforced by the scheduler.
type Graph struct {
	nodes map[NodeID]*Node
	edges map[Input]NodeID // input port -> node whose output feeds it
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node),
		edges: make(map[Input]NodeID),
	}
}

// AddNode inserts a node. Replaces any existing node with the same ID.
func (g *Graph) AddNode(n *Node) {
	g.nodes[n.ID] = n
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id NodeID) {
	delete(g.nodes, id)
	for in, out := range g.edges {
		if in.Node == id || out == id {
			delete(g.edges, in)
		}
	}
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Connect wires the output of e.Output into the port e.To. Both nodes must
// exist; ok is false otherwise.
func (g *Graph) Connect(e Edge) bool {
	if g.nodes[e.Output] == nil || g.nodes[e.To.Node] == nil {
		return false
	}
	g.edges[e.To] = e.Output
	return true
}

// Disconnect removes the edge feeding e.To, if it matches e.Output.
func (g *Graph) Disconnect(e Edge) bool {
	if g.edges[e.To] != e.Output {
		return false
	}
	delete(g.edges, e.To)
	return true
}

// FeedOf returns the node whose output feeds the given input port.
func (g *Graph) FeedOf(in Input) (NodeID, bool) {
	out, ok := g.edges[in]
	return out, ok
}

// Upstream returns the set of node IDs reachable by walking input edges
// backwards from id, including id itself. This is the subgraph a mirror
// needs in order to render the viewer output.
func (g *Graph) Upstream(id NodeID) map[NodeID]bool {
	seen := make(map[NodeID]bool)
	var walk func(NodeID)
	walk = func(cur NodeID) {
		if seen[cur] || g.nodes[cur] == nil {
			return
		}
		seen[cur] = true
		for in, out := range g.edges {
			if in.Node == cur {
				walk(out)
			}
		}
	}
	walk(id)
	return seen
}

// CopyUpstream returns a deep copy of the subgraph reachable from output.
func (g *Graph) CopyUpstream(output NodeID) *Graph {
	reachable := g.Upstream(output)
	c := NewGraph()
	for id := range reachable {
		c.AddNode(g.nodes[id].Clone())
	}
	for in, out := range g.edges {
		if reachable[in.Node] && reachable[out] {
			c.edges[in] = out
		}
	}
	return c
}

// framePayload flattens the subgraph reachable from output into a
// canonical-serialization payload evaluated at time t. Everything that
// determines pixels is included; the timestamp itself is not.
func (g *Graph) framePayload(output NodeID, t timecode.Rational) map[string]any {
	nodes := make(map[string]any)
	for id := range g.Upstream(output) {
		n := g.nodes[id]
		values := make(map[string]any, len(n.Values))
		for name, v := range n.Values {
			values[name] = v.Payload(t)
		}
		hints := make(map[string]any, len(n.Hints))
		for name, h := range n.Hints {
			hints[name] = h.payload()
		}
		nodes[string(id)] = map[string]any{
			"kind":   n.Kind,
			"values": values,
			"hints":  hints,
		}
	}
	edges := make(map[string]any)
	for in, out := range g.edges {
		if _, ok := nodes[string(in.Node)]; !ok {
			continue
		}
		edges[string(out)+"->"+string(in.Node)+"."+in.Name] = true
	}
	return map[string]any{
		"output": string(output),
		"nodes":  nodes,
		"edges":  edges,
	}
}
