package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a sound-change test scenario: a ruleset, the words to
// evolve, and what the evolved words and their traces must look like.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graphs lists polygraphs treated as single symbols (e.g. "th", "ts").
	Graphs []string `yaml:"graphs,omitempty"`

	// Separator breaks a polygraph into its parts. Default: "'".
	Separator string `yaml:"separator,omitempty"`

	// Normalize NFC-normalizes rules and words before segmenting.
	Normalize bool `yaml:"normalize,omitempty"`

	// Categories are defined, in file order, before the rules compile.
	Categories Categories `yaml:"categories,omitempty"`

	// Rules is the rule source text.
	Rules string `yaml:"rules"`

	// Words are evolved in order.
	Words []WordCase `yaml:"words"`

	// MaxPasses bounds persistent rules. Zero keeps the engine default.
	MaxPasses int `yaml:"max_passes,omitempty"`

	// DisabledOptional lists @optional classes to switch off.
	DisabledOptional []string `yaml:"disabled_optional,omitempty"`

	// Assertions validate the traces and the recorded run.
	// Supported types: trace_contains, trace_order, trace_count,
	// diagnostic, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// CategoryDef is one named category.
type CategoryDef struct {
	Name    string
	Members []string
}

// Categories keeps category definitions in the order they were written.
// In YAML it is a mapping from name to member list:
//
//	categories:
//	  V: [a, e, i]
//	  P: [p, t, k]
type Categories []CategoryDef

// UnmarshalYAML decodes a mapping node, preserving key order.
func (c *Categories) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: categories must be a mapping", node.Line)
	}
	out := make(Categories, 0, len(node.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("line %d: category %q defined twice", key.Line, key.Value)
		}
		seen[key.Value] = true

		var members []string
		if err := val.Decode(&members); err != nil {
			return fmt.Errorf("line %d: category %q: %w", val.Line, key.Value, err)
		}
		out = append(out, CategoryDef{Name: key.Value, Members: members})
	}
	*c = out
	return nil
}

// WordCase is one input word with its expected evolution.
type WordCase struct {
	// Input is the word before any rule applies.
	Input string `yaml:"input"`

	// Expect is the expected output. When nil, the output is only
	// recorded in the trace. An empty string expects the word to vanish.
	Expect *string `yaml:"expect,omitempty"`
}

// Assertion validates traces or the recorded run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a rule changed the word
	// - "trace_order": Check rules changed the word in this order
	// - "trace_count": Check a rule changed exactly N words
	// - "diagnostic": Check the word raised a diagnostic code
	// - "final_state": Query a table of the recorded run
	Type string `yaml:"type"`

	// Word is the input word the assertion is about.
	Word string `yaml:"word,omitempty"`

	// Rule is the rule ID (used by trace_contains, trace_count).
	Rule *int `yaml:"rule,omitempty"`

	// Rules is the expected rule order (used by trace_order).
	Rules []int `yaml:"rules,omitempty"`

	// Count is the expected number of words (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Code is the diagnostic code (used by diagnostic).
	Code string `yaml:"code,omitempty"`

	// Table is the store table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected column values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertDiagnostic    = "diagnostic"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

	if len(s.Words) == 0 {
		return fmt.Errorf("words list is required and must be non-empty")
	}

	if s.MaxPasses < 0 {
		return fmt.Errorf("max_passes must be non-negative")
	}

	for _, c := range s.Categories {
		if c.Name == "" {
			return fmt.Errorf("categories: empty category name")
		}
	}

	for i, w := range s.Words {
		if w.Input == "" {
			return fmt.Errorf("words[%d]: input is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Word == "" {
			return fmt.Errorf("assertions[%d]: word is required for trace_contains", index)
		}
		if a.Rule == nil {
			return fmt.Errorf("assertions[%d]: rule is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if a.Word == "" {
			return fmt.Errorf("assertions[%d]: word is required for trace_order", index)
		}
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Rule == nil {
			return fmt.Errorf("assertions[%d]: rule is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertDiagnostic:
		if a.Word == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: word and code are required for diagnostic", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
