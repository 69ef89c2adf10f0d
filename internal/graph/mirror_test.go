package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodlie/autocache/internal/timecode"
)

func liveWithChain(t *testing.T) *LiveGraph {
	t.Helper()
	lg := NewLiveGraph()
	lg.AddNode(solid("src", "ff0000"), nil, nil)
	lg.AddNode(solid("out", "000000"), nil, nil)
	require.True(t, lg.Connect(Edge{Output: "src", To: Input{Node: "out", Name: "in"}}, nil, nil))
	return lg
}

func TestMirror_CopiesOnlyReachableSubgraph(t *testing.T) {
	lg := liveWithChain(t)
	lg.AddNode(solid("orphan", "123456"), nil, nil)

	m := lg.MirrorOf("out")

	assert.Equal(t, 2, m.Graph().NodeCount())
	assert.Nil(t, m.Graph().Node("orphan"))
}

func TestMirror_AppliesEditsInArrivalOrder(t *testing.T) {
	lg := NewLiveGraph()
	m := lg.MirrorOf("out")

	// Edge references a node added earlier in the same batch: order matters.
	m.Enqueue(NodeAdded{Node: solid("a", "ff0000")})
	m.Enqueue(NodeAdded{Node: solid("b", "00ff00")})
	m.Enqueue(EdgeAdded{Edge: Edge{Output: "a", To: Input{Node: "b", Name: "in"}}})
	m.Enqueue(ValueChanged{Input: Input{Node: "a", Name: "color"}, Value: String("0000ff")})

	require.True(t, m.TryApplyPending())

	assert.Equal(t, 0, m.PendingCount())
	feed, ok := m.Graph().FeedOf(Input{Node: "b", Name: "in"})
	require.True(t, ok)
	assert.Equal(t, NodeID("a"), feed)
	assert.Equal(t, String("0000ff"), m.Graph().Node("a").Values["color"])
}

func TestMirror_DeferredWhileBorrowed(t *testing.T) {
	lg := liveWithChain(t)
	m := lg.MirrorOf("out")

	m.Borrow()
	m.Enqueue(ValueChanged{Input: Input{Node: "src", Name: "color"}, Value: String("ffffff")})

	assert.False(t, m.TryApplyPending(), "apply must defer while a task holds the mirror")
	assert.Equal(t, 1, m.PendingCount())
	assert.Equal(t, String("ff0000"), m.Graph().Node("src").Values["color"])

	m.Release()
	require.True(t, m.TryApplyPending())
	assert.Equal(t, String("ffffff"), m.Graph().Node("src").Values["color"])
}

func TestMirror_NestedBorrows(t *testing.T) {
	lg := liveWithChain(t)
	m := lg.MirrorOf("out")

	m.Borrow()
	m.Borrow()
	m.Release()
	assert.True(t, m.Borrowed())
	assert.False(t, m.TryApplyPending())

	m.Release()
	assert.False(t, m.Borrowed())
	assert.True(t, m.TryApplyPending())
}

func TestMirror_ReleaseWithoutBorrowPanics(t *testing.T) {
	m := NewLiveGraph().MirrorOf("out")
	assert.Panics(t, func() { m.Release() })
}

func TestMirror_DanglingEditSkippedSilently(t *testing.T) {
	lg := liveWithChain(t)
	m := lg.MirrorOf("out")

	// Live side removed "src" before the mirror caught up: a value change
	// targeting it arrives ahead of the queued removal.
	m.Enqueue(ValueChanged{Input: Input{Node: "gone", Name: "color"}, Value: String("ffffff")})
	m.Enqueue(EdgeAdded{Edge: Edge{Output: "gone", To: Input{Node: "out", Name: "in"}}})
	m.Enqueue(NodeRemoved{ID: "gone"})

	require.True(t, m.TryApplyPending())

	// Mirror is intact; the dangling edits had no effect.
	assert.Equal(t, 2, m.Graph().NodeCount())
	assert.Nil(t, m.Graph().Node("gone"))
}

func TestMirror_NodeAddedSnapshotIsIsolated(t *testing.T) {
	lg := NewLiveGraph()
	m := lg.MirrorOf("out")

	n := solid("a", "ff0000")
	m.Enqueue(NodeAdded{Node: n})
	require.True(t, m.TryApplyPending())

	// Mutating the enqueued snapshot after apply must not reach the mirror.
	n.Values["color"] = String("ffffff")
	assert.Equal(t, String("ff0000"), m.Graph().Node("a").Values["color"])
}

func TestMirror_FramePayloadTracksAppliedEdits(t *testing.T) {
	lg := liveWithChain(t)
	m := lg.MirrorOf("out")

	before := m.FramePayload(timecode.FromInt(0))

	m.Enqueue(ValueChanged{Input: Input{Node: "src", Name: "color"}, Value: String("ffffff")})
	require.True(t, m.TryApplyPending())

	after := m.FramePayload(timecode.FromInt(0))
	assert.NotEqual(t, before, after)
}
