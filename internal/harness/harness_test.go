package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "scenario files must exist")

	for _, file := range files {
		scenario, err := LoadScenario(file)
		require.NoError(t, err, "scenario %s must load", file)

		t.Run(scenario.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, scenario, t.TempDir()))
		})
	}
}

func TestRun_RecordsTrace(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Config:      ScenarioConfig{Extension: "sql"},
		Steps: []Step{
			{Op: OpNew},
			{Op: OpSetSaved, Index: 0, Saved: false},
		},
	}

	result, err := Run(scenario, t.TempDir())
	require.NoError(t, err)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "new", result.Trace[0].Event)
	assert.Equal(t, "Untitled 1.sql", result.Trace[0].Name)
	assert.Equal(t, "changed", result.Trace[1].Event)
}

func TestRun_RelativizesPaths(t *testing.T) {
	root := t.TempDir()
	scenario := &Scenario{
		Name:        "relativize",
		Description: "paths are stable across runs",
		Config:      ScenarioConfig{Extension: "sql"},
		Fixtures:    []Fixture{{Name: "a.sql", Content: "x"}},
		Steps:       []Step{{Op: OpOpen, Path: "a.sql"}},
	}

	result, err := Run(scenario, root)
	require.NoError(t, err)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "$ROOT/a.sql", result.Trace[0].Path, "temp root must not leak into the trace")
}

func TestMarshalTrace_Shape(t *testing.T) {
	ix := 0
	snapshot := &TraceSnapshot{
		ScenarioName: "shape",
		Trace: []TraceEvent{
			{Event: "new", Name: "Untitled 1.sql", Index: &ix},
			{Event: "window_close"},
		},
	}

	data, err := MarshalTrace(snapshot)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario":"shape","trace":[{"event":"new","index":0,"name":"Untitled 1.sql"},{"event":"window_close"}]}`,
		string(data))
}
