package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"gopkg.in/yaml.v3"

	"github.com/rodlie/autocache/internal/cacher"
)

// TraceSnapshot is the serialized form of a scenario run, compared against
// golden files.
type TraceSnapshot struct {
	ScenarioName string              `yaml:"scenario_name"`
	Trace        []cacher.TraceEvent `yaml:"trace"`
}

// snapshot builds the comparable form of the recorded trace. Content
// hashes are replaced with stable placeholders (h#1, h#2, ... in order of
// first appearance): the hash values are an implementation detail of the
// fingerprint encoding, and golden files should not break when it evolves.
func (r *Runner) snapshot() TraceSnapshot {
	placeholders := make(map[string]string)
	trace := make([]cacher.TraceEvent, len(r.trace))
	for i, ev := range r.trace {
		if ev.Hash != "" {
			p, ok := placeholders[ev.Hash]
			if !ok {
				p = fmt.Sprintf("h#%d", len(placeholders)+1)
				placeholders[ev.Hash] = p
			}
			ev.Hash = p
		}
		trace[i] = ev
	}
	return TraceSnapshot{ScenarioName: r.scenario.Name, Trace: trace}
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) {
	t.Helper()

	r, err := NewRunner(sc)
	if err != nil {
		t.Fatalf("building runner: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("running scenario: %v", err)
	}

	data, err := yaml.Marshal(r.snapshot())
	if err != nil {
		t.Fatalf("marshaling snapshot: %v", err)
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata"))
	g.Assert(t, sc.Name, data)
}
