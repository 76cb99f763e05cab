package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// Serialization is deterministic: map keys sort alphabetically and
// absent fields are omitted.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// toCanonicalMap converts the snapshot to nested maps so the JSON
// encoder emits sorted keys and drops absent fields.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"event": event.Event,
		}
		if event.Name != "" {
			eventMap["name"] = event.Name
		}
		if event.Path != "" {
			eventMap["path"] = event.Path
		}
		if event.Index != nil {
			eventMap["index"] = *event.Index
		}
		if event.Remaining != nil {
			eventMap["remaining"] = *event.Remaining
		}
		if event.Message != "" {
			eventMap["message"] = event.Message
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"trace":    traceList,
	}
}

// MarshalTrace serializes a snapshot to canonical JSON.
func MarshalTrace(s *TraceSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.toCanonicalMap()); err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RunWithGolden executes a scenario in a fresh root and compares the
// trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, root string) error {
	t.Helper()

	result, err := Run(scenario, root)
	if err != nil {
		return err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
	}
	traceJSON, err := MarshalTrace(&snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
