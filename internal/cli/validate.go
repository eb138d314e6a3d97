package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sce/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Rules  int                        `json:"rules"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// WriteText renders the findings for humans.
func (r *ValidationResult) WriteText(w io.Writer) error {
	if r.Valid {
		fmt.Fprintf(w, "✓ %d rule(s) valid\n", r.Rules)
		return nil
	}
	fmt.Fprintf(w, "✗ Validation failed with %d error(s)\n\n", len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	return nil
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <project-or-rules>",
		Short: "Check rules for semantic problems",
		Long: `Compile the rules and check the IR for problems that compile
only records as diagnostics: undefined categories, correlation mismatches,
replacement counts that do not line up, and rules with no usable branch.

Exits 1 when any finding is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	project, err := loadInput(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	rs, err := compileProject(formatter, project, project.Segmenter())
	if err != nil {
		return err
	}

	findings := compiler.Validate(rs)
	for _, f := range findings {
		formatter.VerboseLog("finding: %s", f.Error())
	}

	result := &ValidationResult{
		Valid:  len(findings) == 0,
		Rules:  len(rs.Rules),
		Errors: findings,
	}
	if result.Valid {
		return formatter.Success(result)
	}

	if formatter.Format == "json" {
		if err := formatter.Error(ErrCodeValidation, fmt.Sprintf("validation failed with %d error(s)", len(findings)), findings); err != nil {
			return err
		}
	} else if err := result.WriteText(formatter.Writer); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(findings)))
}
