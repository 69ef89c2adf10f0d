package cacher

import (
	"github.com/rodlie/autocache/internal/graph"
	"github.com/rodlie/autocache/internal/timecode"
)

// GraphSource is the live-graph collaborator: it can build a render-safe
// mirror and deliver change notifications in a single total order.
// *graph.LiveGraph satisfies it.
type GraphSource interface {
	MirrorOf(output graph.NodeID) *graph.Mirror
	Watch(fn func(graph.Change)) (cancel func())
}

// Format supplies the sequence parameters the scheduler needs: the frame
// timebase for discretizing ranges, the sequence length for bounding the
// auto-cache window, and the audio format playback currently requires.
type Format struct {
	// Timebase is the duration of one video frame in seconds (e.g.
	// 1001/30000 for 29.97 fps).
	Timebase timecode.Rational

	// Duration is the sequence length in seconds.
	Duration timecode.Rational

	// AudioFormat names the sample format playback requires (e.g.
	// "s16le-48000-2"). Cached audio in any other format needs conform.
	AudioFormat string
}

// Viewer is what gets attached for auto-caching: a graph source, the output
// node to render, and the sequence format.
type Viewer struct {
	Graph  GraphSource
	Output graph.NodeID
	Format Format
}

// FrameStore is the cache-store collaborator. Video frames are keyed by
// content hash; audio by time range. Implementations must be safe for
// concurrent use - cache writes run on worker goroutines.
type FrameStore interface {
	// HasFrame reports whether a frame with this content hash is cached.
	HasFrame(hash string) (bool, error)

	// SaveFrame stores frame data under its content hash.
	SaveFrame(hash string, data []byte) error

	// AssociateFrame records that the frame at time t has the given hash.
	AssociateFrame(t timecode.Rational, hash string) error

	// SaveAudio stores rendered samples for a range in the given format.
	SaveAudio(r timecode.TimeRange, data []byte, format string) error

	// SetAudioFormat updates only the format metadata for a cached range,
	// after a conform pass converted the samples in place.
	SetAudioFormat(r timecode.TimeRange, format string) error
}
