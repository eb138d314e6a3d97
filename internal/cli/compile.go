package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sce/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // IR output file path
	Strict bool   // fail when compile diagnostics were raised
}

// CompilationResult summarizes a compiled ruleset.
type CompilationResult struct {
	Project     string          `json:"project"`
	Rules       int             `json:"rules"`
	Branches    int             `json:"branches"`
	Categories  int             `json:"categories"`
	RulesetHash string          `json:"ruleset_hash"`
	Diagnostics []ir.Diagnostic `json:"diagnostics,omitempty"`
	OutputFile  string          `json:"output_file,omitempty"`
}

// WriteText renders the summary for humans.
func (r *CompilationResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "✓ Compiled %d rule(s), %d branch(es)\n", r.Rules, r.Branches)
	fmt.Fprintf(w, "Ruleset hash: %s\n", r.RulesetHash)
	if len(r.Diagnostics) > 0 {
		fmt.Fprintf(w, "\nDiagnostics (%d):\n", len(r.Diagnostics))
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	if r.OutputFile != "" {
		fmt.Fprintf(w, "\nWrote IR to %s\n", r.OutputFile)
	}
	return nil
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <project-or-rules>",
		Short: "Compile sound-change rules to IR",
		Long: `Compile a project (.cue, .yaml) or a bare rules file to the rule IR.

Syntax errors stop compilation with their line and column. Semantic
problems, such as an undefined category, become diagnostics on the
affected rule and are listed without failing unless --strict is set.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled IR as JSON to this file")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when compilation raised diagnostics")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	project, err := loadInput(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("Compiling %s (%d categories)", project.RulesName, len(project.Categories))

	rs, err := compileProject(formatter, project, project.Segmenter())
	if err != nil {
		return err
	}

	hash, err := ir.RulesetHash(rs)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompileFailed, "hashing ruleset", err, nil)
	}

	result := &CompilationResult{
		Project:     project.Name,
		Rules:       len(rs.Rules),
		Categories:  len(rs.Categories),
		RulesetHash: hash,
		Diagnostics: rs.Diagnostics(),
		OutputFile:  opts.Output,
	}
	for _, r := range rs.Rules {
		result.Branches += len(r.Branches)
	}

	if opts.Output != "" {
		if err := writeIRToFile(rs, opts.Output); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLoadFailed, "writing output file", err, nil)
		}
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if opts.Strict && len(result.Diagnostics) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("compilation raised %d diagnostic(s)", len(result.Diagnostics)))
	}
	return nil
}

// writeIRToFile writes the ruleset as indented JSON.
// Canonical JSON without indentation is used only for hashing.
func writeIRToFile(rs *ir.Ruleset, filename string) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
