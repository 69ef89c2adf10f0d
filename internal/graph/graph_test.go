package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodlie/autocache/internal/timecode"
)

func solid(id NodeID, color string) *Node {
	return &Node{
		ID:     id,
		Kind:   "solid",
		Values: map[string]Value{"color": String(color)},
	}
}

func TestGraph_ConnectRequiresBothEnds(t *testing.T) {
	g := NewGraph()
	g.AddNode(solid("a", "ff0000"))

	ok := g.Connect(Edge{Output: "a", To: Input{Node: "missing", Name: "in"}})
	assert.False(t, ok)

	g.AddNode(solid("b", "00ff00"))
	ok = g.Connect(Edge{Output: "a", To: Input{Node: "b", Name: "in"}})
	assert.True(t, ok)

	feed, ok := g.FeedOf(Input{Node: "b", Name: "in"})
	require.True(t, ok)
	assert.Equal(t, NodeID("a"), feed)
}

func TestGraph_RemoveNodeDropsEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode(solid("a", "ff0000"))
	g.AddNode(solid("b", "00ff00"))
	require.True(t, g.Connect(Edge{Output: "a", To: Input{Node: "b", Name: "in"}}))

	g.RemoveNode("a")

	assert.Nil(t, g.Node("a"))
	_, ok := g.FeedOf(Input{Node: "b", Name: "in"})
	assert.False(t, ok)
}

func TestGraph_UpstreamClosure(t *testing.T) {
	g := NewGraph()
	for _, id := range []NodeID{"src", "blur", "out", "orphan"} {
		g.AddNode(solid(id, "000000"))
	}
	require.True(t, g.Connect(Edge{Output: "src", To: Input{Node: "blur", Name: "in"}}))
	require.True(t, g.Connect(Edge{Output: "blur", To: Input{Node: "out", Name: "in"}}))

	up := g.Upstream("out")
	assert.Equal(t, map[NodeID]bool{"src": true, "blur": true, "out": true}, up)
}

func TestGraph_CopyUpstreamIsDeep(t *testing.T) {
	g := NewGraph()
	g.AddNode(solid("src", "ff0000"))
	g.AddNode(solid("out", "000000"))
	g.AddNode(solid("orphan", "123456"))
	require.True(t, g.Connect(Edge{Output: "src", To: Input{Node: "out", Name: "in"}}))

	c := g.CopyUpstream("out")

	assert.Equal(t, 2, c.NodeCount())
	assert.Nil(t, c.Node("orphan"))

	// Mutating the copy must not touch the original.
	c.Node("src").Values["color"] = String("ffffff")
	assert.Equal(t, String("ff0000"), g.Node("src").Values["color"])
}

func TestKeyframed_StepInterpolation(t *testing.T) {
	v := NewKeyframed(
		Keyframe{Time: timecode.FromInt(0), Value: Int(1)},
		Keyframe{Time: timecode.FromInt(5), Value: Int(2)},
	)

	assert.Equal(t, Int(1), v.At(timecode.FromInt(0)))
	assert.Equal(t, Int(1), v.At(timecode.FromInt(4)))
	assert.Equal(t, Int(2), v.At(timecode.FromInt(5)))
	assert.Equal(t, Int(2), v.At(timecode.FromInt(100)))

	// Before the first keyframe the first value applies.
	assert.Equal(t, Int(1), v.At(timecode.NewRational(-1, 1)))
}

func TestKeyframed_Validation(t *testing.T) {
	assert.Panics(t, func() { NewKeyframed() })
	assert.Panics(t, func() {
		NewKeyframed(
			Keyframe{Time: timecode.FromInt(5), Value: Int(1)},
			Keyframe{Time: timecode.FromInt(0), Value: Int(2)},
		)
	})
}

func TestFramePayload_VariesOnlyAtKeyframes(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{
		ID:   "out",
		Kind: "solid",
		Values: map[string]Value{
			"color": NewKeyframed(
				Keyframe{Time: timecode.FromInt(0), Value: String("ff0000")},
				Keyframe{Time: timecode.FromInt(10), Value: String("00ff00")},
			),
		},
	})

	p0 := g.framePayload("out", timecode.FromInt(0))
	p5 := g.framePayload("out", timecode.FromInt(5))
	p10 := g.framePayload("out", timecode.FromInt(10))

	assert.Equal(t, p0, p5)
	assert.NotEqual(t, p0, p10)
}

func TestLiveGraph_EmitsChangesInOrder(t *testing.T) {
	lg := NewLiveGraph()

	var kinds []string
	cancel := lg.Watch(func(c Change) {
		kinds = append(kinds, c.Edit.Kind())
	})
	defer cancel()

	lg.AddNode(solid("a", "ff0000"), nil, nil)
	lg.AddNode(solid("b", "00ff00"), nil, nil)
	lg.Connect(Edge{Output: "a", To: Input{Node: "b", Name: "in"}}, nil, nil)
	lg.SetValue(Input{Node: "a", Name: "color"}, String("0000ff"), nil, nil)
	lg.SetHint(Input{Node: "b", Name: "in"}, ValueHint{Type: "texture"}, nil, nil)
	lg.RemoveNode("a", nil, nil)

	assert.Equal(t, []string{
		"node-added", "node-added", "edge-added",
		"value-changed", "value-hint-changed", "node-removed",
	}, kinds)
}

func TestLiveGraph_WatchCancelStopsDelivery(t *testing.T) {
	lg := NewLiveGraph()

	count := 0
	cancel := lg.Watch(func(Change) { count++ })

	lg.AddNode(solid("a", "ff0000"), nil, nil)
	cancel()
	lg.AddNode(solid("b", "00ff00"), nil, nil)

	assert.Equal(t, 1, count)
}

func TestLiveGraph_ChangeCarriesInvalidationRanges(t *testing.T) {
	lg := NewLiveGraph()

	var got Change
	lg.Watch(func(c Change) { got = c })

	vr := timecode.NewRange(timecode.FromInt(0), timecode.FromInt(10))
	lg.AddNode(solid("a", "ff0000"), &vr, nil)

	require.NotNil(t, got.Video)
	assert.Equal(t, vr, *got.Video)
	assert.Nil(t, got.Audio)
}
