package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodlie/autocache/internal/timecode"
)

func TestParse_FullProfile(t *testing.T) {
	p, err := parse([]byte(`
playhead_behind: "1/2"
playhead_ahead: "30"
max_concurrent_renders: 8
audio_chunk: "5"
requeue_delay_ms: 100
`))
	require.NoError(t, err)

	assert.True(t, p.PlayheadBehind.Equal(timecode.NewRational(1, 2)))
	assert.True(t, p.PlayheadAhead.Equal(timecode.FromInt(30)))
	assert.Equal(t, 8, p.MaxConcurrentRenders)
	assert.True(t, p.AudioChunk.Equal(timecode.FromInt(5)))
	assert.Equal(t, 100*time.Millisecond, p.RequeueDelay)
}

func TestParse_AbsentFieldsKeepDefaults(t *testing.T) {
	p, err := parse([]byte(`max_concurrent_renders: 2`))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, 2, p.MaxConcurrentRenders)
	assert.True(t, p.PlayheadAhead.Equal(def.PlayheadAhead))
	assert.Equal(t, def.RequeueDelay, p.RequeueDelay)
}

func TestParse_RejectsBadRational(t *testing.T) {
	_, err := parse([]byte(`playhead_ahead: "0.5"`))
	assert.Error(t, err, "float notation must be rejected")

	_, err = parse([]byte(`audio_chunk: "1/0"`))
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`playhead_ahead: "15"`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.True(t, p.PlayheadAhead.Equal(timecode.FromInt(15)))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
