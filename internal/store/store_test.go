package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodlie/autocache/internal/timecode"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SaveFrame("h1", []byte("pixels")))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	ok, err := s2.HasFrame("h1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSaveFrameIsContentAddressed(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveFrame("h1", []byte("pixels")))
	// Same hash again: a no-op, not an error.
	require.NoError(t, s.SaveFrame("h1", []byte("pixels")))

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Frames)
	assert.Equal(t, int64(6), st.FrameBytes)
}

func TestAssociateAndReadBack(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveFrame("h1", []byte("one")))
	require.NoError(t, s.SaveFrame("h2", []byte("two")))

	t0 := timecode.NewRational(1001, 30000)
	require.NoError(t, s.AssociateFrame(t0, "h1"))

	data, ok, err := s.FrameAt(t0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("one"), data)

	// Re-association points the time at new content.
	require.NoError(t, s.AssociateFrame(t0, "h2"))
	data, ok, err = s.FrameAt(t0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("two"), data)

	_, ok, err = s.FrameAt(timecode.FromInt(99))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashAt(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveFrame("h1", []byte("one")))
	require.NoError(t, s.AssociateFrame(timecode.FromInt(3), "h1"))

	h, ok, err := s.HashAt(timecode.FromInt(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "h1", h)

	_, ok, err = s.HashAt(timecode.FromInt(4))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPruneUnreferenced(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveFrame("kept", []byte("one")))
	require.NoError(t, s.SaveFrame("orphan", []byte("two")))
	require.NoError(t, s.AssociateFrame(timecode.FromInt(0), "kept"))

	n, err := s.PruneUnreferenced()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := s.HasFrame("kept")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasFrame("orphan")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAudioReplacesOverlap(t *testing.T) {
	s := openTestStore(t)
	r1 := timecode.NewRange(timecode.FromInt(0), timecode.FromInt(2))
	r2 := timecode.NewRange(timecode.FromInt(2), timecode.FromInt(4))

	require.NoError(t, s.SaveAudio(r1, []byte("aa"), "s16le"))
	require.NoError(t, s.SaveAudio(r2, []byte("bb"), "s16le"))

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.AudioSegments)

	// Re-rendering a chunk replaces it, no duplicate span.
	require.NoError(t, s.SaveAudio(r1, []byte("cc"), "s16le"))
	st, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.AudioSegments)

	data, format, ok, err := s.AudioAt(timecode.NewRational(1, 2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("cc"), data)
	assert.Equal(t, "s16le", format)
}

func TestSetAudioFormatRetagsOverlappingSegments(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveAudio(timecode.NewRange(timecode.FromInt(0), timecode.FromInt(2)), []byte("aa"), "s16le"))
	require.NoError(t, s.SaveAudio(timecode.NewRange(timecode.FromInt(2), timecode.FromInt(4)), []byte("bb"), "s16le"))
	require.NoError(t, s.SaveAudio(timecode.NewRange(timecode.FromInt(4), timecode.FromInt(6)), []byte("cc"), "s16le"))

	require.NoError(t, s.SetAudioFormat(timecode.NewRange(timecode.FromInt(0), timecode.FromInt(4)), "f32le"))

	_, format, ok, err := s.AudioAt(timecode.FromInt(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f32le", format)

	// The segment past the range keeps its old tag.
	_, format, ok, err = s.AudioAt(timecode.FromInt(5))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "s16le", format)
}

func TestStatsEmpty(t *testing.T) {
	s := openTestStore(t)
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}
