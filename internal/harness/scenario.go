package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario. Scenarios validate
// archiver behavior by executing a sequence of operations and
// comparing the resulting event trace against a golden file.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides engine limits for this scenario.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Fixtures are files written into the scenario root before the
	// steps run. Paths in steps resolve against the same root.
	Fixtures []Fixture `yaml:"fixtures,omitempty"`

	// Buffer is the content the engine pulls on every save.
	Buffer string `yaml:"buffer,omitempty"`

	// Steps is the operation sequence.
	Steps []Step `yaml:"steps"`
}

// ScenarioConfig overrides engine options per scenario.
type ScenarioConfig struct {
	Extension    string `yaml:"extension,omitempty"`
	MaxOpenFiles int    `yaml:"max_open_files,omitempty"`
	MaxFileBytes int    `yaml:"max_file_bytes,omitempty"`

	// Sandbox sets the path prefix to the scenario root before any
	// step runs.
	Sandbox bool `yaml:"sandbox,omitempty"`
}

// Fixture is a file created in the scenario root before execution.
type Fixture struct {
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

// Step is one archiver operation.
type Step struct {
	// Op names the operation. See the Op constants.
	Op string `yaml:"op"`

	// Path is the target path for open/save/set_prefix operations,
	// resolved against the scenario root when relative.
	Path string `yaml:"path,omitempty"`

	// Index addresses a registry slot for close/select/set_saved.
	Index int `yaml:"index,omitempty"`

	// Force skips the dirty-confirmation round trip on close.
	Force bool `yaml:"force,omitempty"`

	// Saved is the dirty-flag value for set_saved.
	Saved bool `yaml:"saved,omitempty"`
}

// Operation constants.
const (
	OpNew          = "new"
	OpOpen         = "open"
	OpOpenRelative = "open_relative"
	OpSave         = "save"
	OpClose        = "close"
	OpSelect       = "select"
	OpDeselect     = "deselect"
	OpSetSaved     = "set_saved"
	OpSetPrefix    = "set_prefix"
	OpClearPrefix  = "clear_prefix"
	OpWindowClose  = "window_close"
)

var knownOps = map[string]bool{
	OpNew:          true,
	OpOpen:         true,
	OpOpenRelative: true,
	OpSave:         true,
	OpClose:        true,
	OpSelect:       true,
	OpDeselect:     true,
	OpSetSaved:     true,
	OpSetPrefix:    true,
	OpClearPrefix:  true,
	OpWindowClose:  true,
}

// LoadScenario reads and parses a scenario YAML file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields
// (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, f := range s.Fixtures {
		if f.Name == "" {
			return fmt.Errorf("fixtures[%d]: name is required", i)
		}
	}

	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if !knownOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		switch step.Op {
		case OpOpen, OpOpenRelative, OpSetPrefix:
			if step.Path == "" {
				return fmt.Errorf("steps[%d]: path is required for %s", i, step.Op)
			}
		case OpClose, OpSelect, OpSetSaved:
			if step.Index < 0 {
				return fmt.Errorf("steps[%d]: index must be non-negative for %s", i, step.Op)
			}
		}
	}

	return nil
}
