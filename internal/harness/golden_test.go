package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{
		"constant-sequence",
		"invalidate-rerenders",
	} {
		t.Run(name, func(t *testing.T) {
			sc, err := Load(filepath.Join("testdata", name+".yaml"))
			require.NoError(t, err)
			RunWithGolden(t, sc)
		})
	}
}
