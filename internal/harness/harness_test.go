package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodlie/autocache/internal/timecode"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRejectsMissingName(t *testing.T) {
	path := writeScenario(t, `
format:
  timebase: "1/1"
  duration: "2"
  audio_format: s16le
level:
  - time: "0"
    level: 1
steps: []
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}

func TestLoadRejectsMissingLevel(t *testing.T) {
	path := writeScenario(t, `
name: empty
format:
  timebase: "1/1"
  duration: "2"
  audio_format: s16le
steps: []
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing level")
}

func TestProfileOverrides(t *testing.T) {
	sc := &Scenario{
		Name: "p",
		Profile: &ProfileSpec{
			PlayheadAhead:        "3",
			MaxConcurrentRenders: 7,
			RequeueDelayMS:       5,
		},
	}
	p, err := sc.profile()
	require.NoError(t, err)
	assert.True(t, p.PlayheadAhead.Equal(timecode.FromInt(3)))
	assert.Equal(t, 7, p.MaxConcurrentRenders)
	assert.Equal(t, millis(5), p.RequeueDelay)

	// Absent fields keep defaults.
	assert.True(t, p.PlayheadBehind.Equal(timecode.FromInt(2)))
}

func TestRunnerRejectsUnknownOp(t *testing.T) {
	r, err := NewRunner(&Scenario{
		Name:   "bad-op",
		Format: FormatSpec{Timebase: "1/1", Duration: "2", AudioFormat: "s16le"},
		Level:  []KeyframeSpec{{Time: "0", Level: 1}},
		Steps:  []Step{{Op: "explode"}},
	})
	require.NoError(t, err)
	err = r.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown op")
}

func TestRunnerFinalState(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "constant-sequence.yaml"))
	require.NoError(t, err)

	r, err := NewRunner(sc)
	require.NoError(t, err)
	require.NoError(t, r.Run())

	// Four frames, one distinct content, two audio chunks.
	assert.Equal(t, 1, r.Store().FrameCount())
	assert.Equal(t, 4, r.Store().AssociationCount())
	assert.Equal(t, 2, r.Store().AudioSegmentCount())
}
