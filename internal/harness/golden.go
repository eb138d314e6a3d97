package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sce/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// It is serialized with canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario_name"`
	Trace        []WordTrace `json:"trace"`
}

// GoldenJSON returns the canonical JSON snapshot that golden files hold.
func GoldenJSON(scenarioName string, result *Result) ([]byte, error) {
	trace := result.Trace
	if trace == nil {
		trace = []WordTrace{}
	}
	return ir.MarshalCanonical(TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := GoldenJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
