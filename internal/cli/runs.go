package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/sce/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
}

// RunsResult lists recorded runs, oldest first.
type RunsResult struct {
	Runs []store.Run `json:"runs"`
}

// WriteText renders the runs as a table.
func (r *RunsResult) WriteText(w io.Writer) error {
	if len(r.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tPROJECT\tWORDS\tRULESET")
	for _, run := range r.Runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", run.Seq, run.ID, run.Project, run.WordCount, shortHash(run.RulesetHash))
	}
	return tw.Flush()
}

// shortHash trims a hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded with "apply --db", oldest first.

Examples:
  sce runs --db runs.db
  sce runs --db runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(ctx context.Context, opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "listing runs", err, nil)
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return formatter.Success(&RunsResult{Runs: runs})
}
