package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: demo
description: a valid scenario
steps:
  - op: new
  - op: window_close
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", s.Name)
	assert.Len(t, s.Steps, 2)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: demo
description: typo below
step:
  - op: new
`)
	_, err := LoadScenario(path)
	require.Error(t, err, "unknown fields must be rejected")
}

func TestLoadScenario_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			"missing name",
			"description: d\nsteps:\n  - op: new\n",
		},
		{
			"missing description",
			"name: n\nsteps:\n  - op: new\n",
		},
		{
			"empty steps",
			"name: n\ndescription: d\n",
		},
		{
			"unknown op",
			"name: n\ndescription: d\nsteps:\n  - op: teleport\n",
		},
		{
			"open without path",
			"name: n\ndescription: d\nsteps:\n  - op: open\n",
		},
		{
			"fixture without name",
			"name: n\ndescription: d\nfixtures:\n  - content: x\nsteps:\n  - op: new\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScenario(t, tc.yaml)
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}
