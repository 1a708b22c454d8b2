package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Schema is the path to the schema document, relative to the
	// scenario file location.
	Schema string `yaml:"schema"`

	// Tokens is the fixed transaction token sequence for deterministic
	// traces. Every step that reaches token minting consumes one.
	Tokens []string `yaml:"tokens,omitempty"`

	// Seed inserts values directly into state bags before the steps,
	// bypassing operations.
	Seed []SeedStep `yaml:"seed,omitempty"`

	// Steps is the main flow, in order.
	Steps []Step `yaml:"steps"`
}

// SeedStep inserts wire-form values into one state bag.
type SeedStep struct {
	State  string `yaml:"state"`
	Values []any  `yaml:"values"`
}

// Step is one scenario step: exactly one of Apply or Query is set.
// Args are wire-form values decoded against the declared parameter types;
// handle-typed records carry their identity under "$id".
type Step struct {
	Apply  string  `yaml:"apply,omitempty"`
	Query  string  `yaml:"query,omitempty"`
	Args   []any   `yaml:"args,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected step outcome. A nil Expect means the step
// must succeed.
type Expect struct {
	// Error is the expected execution error code
	// (e.g. "PRECONDITION_VIOLATION"). Empty means success.
	Error string `yaml:"error,omitempty"`

	// Rows is the expected result row count for a query step.
	Rows *int `yaml:"rows,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("load scenario %s: missing name", path)
	}
	if sc.Schema == "" {
		return nil, fmt.Errorf("load scenario %s: missing schema", path)
	}
	for i, step := range sc.Steps {
		if (step.Apply == "") == (step.Query == "") {
			return nil, fmt.Errorf("load scenario %s: step %d must set exactly one of apply or query", path, i)
		}
	}
	return &sc, nil
}
