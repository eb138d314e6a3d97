package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/sce/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated", "missing", "differs"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// WriteText prints a line per scenario and a summary.
func (r *TestResult) WriteText(w io.Writer) error {
	if r.Total == 0 {
		_, err := fmt.Fprintln(w, "No scenarios found.")
		return err
	}
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s", mark, s.Name)
		if s.Golden == "updated" {
			fmt.Fprint(w, " (golden updated)")
		}
		fmt.Fprintln(w)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	return nil
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios: each compiles its rules, evolves its words,
checks the expected outputs and assertions, and compares the trace with
golden/<name>.golden next to the scenario file.

A scenario without a golden file passes on its assertions alone.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  sce test ./scenarios
  sce test ./scenarios --filter "voicing-*"
  sce test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := harness.FindScenarios(dir, opts.Filter)
	if err != nil {
		var dirErr *harness.ScenarioDirError
		if errors.As(err, &dirErr) {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, "scenarios directory", err, nil)
		}
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, "finding scenarios", err, nil)
	}

	result := &TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, path := range files {
		formatter.VerboseLog("Running %s", path)
		sr := runScenario(path, opts.Update)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// runScenario executes one scenario file and checks its golden trace.
func runScenario(path string, update bool) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(path), Path: path}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("load error: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution error: %v", err)}
		return sr
	}
	sr.Errors = append(sr.Errors, result.Errors...)

	golden, err := checkGolden(path, scenario.Name, result, update)
	sr.Golden = golden
	if err != nil {
		sr.Errors = append(sr.Errors, err.Error())
	}

	sr.Pass = len(sr.Errors) == 0
	return sr
}

// goldenPath returns golden/<name>.golden in the scenario's directory.
func goldenPath(scenarioPath, name string) string {
	return filepath.Join(filepath.Dir(scenarioPath), "golden", name+".golden")
}

// checkGolden compares the trace snapshot with the golden file, or
// rewrites the file when update is set.
func checkGolden(scenarioPath, name string, result *harness.Result, update bool) (string, error) {
	got, err := harness.GoldenJSON(name, result)
	if err != nil {
		return "", fmt.Errorf("golden snapshot: %w", err)
	}
	path := goldenPath(scenarioPath, name)

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("creating golden directory: %w", err)
		}
		if err := os.WriteFile(path, got, 0644); err != nil {
			return "", fmt.Errorf("writing golden file: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(got)) {
		return "differs", fmt.Errorf("trace differs from %s (run with --update to accept)", path)
	}
	return "match", nil
}
