package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sce/internal/query"
	"github.com/roach88/sce/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // defaults to the latest run
	Word     int    // word index, -1 for every word
	Rule     int    // only words this rule changed, -1 for any
	Changed  bool   // only words some rule changed
}

// TraceResult holds the recorded history of a run's words.
type TraceResult struct {
	Run   store.Run          `json:"run"`
	Words []store.WordRecord `json:"words"`
}

// WriteText prints each word and the rules that changed it, in order.
func (r *TraceResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Run %s (seq %d, %s)\n", r.Run.ID, r.Run.Seq, r.Run.Project)
	fmt.Fprintf(w, "Ruleset %s, engine %s\n", shortHash(r.Run.RulesetHash), r.Run.EngineVersion)
	if len(r.Words) == 0 {
		fmt.Fprintln(w, "\nNo words.")
		return nil
	}
	for _, word := range r.Words {
		fmt.Fprintf(w, "\n[%d] %s → %s\n", word.Index, word.Input, word.Output)
		for _, c := range word.Changes {
			fmt.Fprintf(w, "  rule %d (line %d) %s\n", c.RuleID, c.Line, c.Source)
			fmt.Fprintf(w, "    %s → %s", c.Before, c.After)
			fmt.Fprintf(w, "  sites %d, passes %d", len(c.Sites), c.Passes)
			if c.Truncated {
				fmt.Fprint(w, ", truncated")
			}
			fmt.Fprintln(w)
		}
		for _, d := range word.Diagnostics {
			fmt.Fprintf(w, "  ! %s\n", d)
		}
	}
	return nil
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show how recorded words evolved",
		Long: `Show the change records of a recorded run: for each word, every
rule that changed it with the form before and after, the number of sites,
and the passes a persistent rule took.

Examples:
  sce trace --db runs.db
  sce trace --db runs.db --run 0192f1c4-... --word 3
  sce trace --db runs.db --rule 2
  sce trace --db runs.db --changed --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (default: latest run)")
	cmd.Flags().IntVar(&opts.Word, "word", -1, "show only the word with this index")
	cmd.Flags().IntVar(&opts.Rule, "rule", -1, "show only words changed by the rule with this ID")
	cmd.Flags().BoolVar(&opts.Changed, "changed", false, "show only words that changed")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := selectRun(ctx, formatter, st, opts.RunID)
	if err != nil {
		return err
	}

	words, err := st.ReadWords(ctx, run.ID)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "reading words", err, nil)
	}

	if opts.Word >= 0 && opts.Word >= len(words) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("word %d out of range (run has %d words)", opts.Word, len(words)), nil, nil)
	}

	var byRule map[int]bool
	if opts.Rule >= 0 {
		byRule, err = wordsChangedBy(ctx, st, run.ID, opts.Rule)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, "querying changes", err, nil)
		}
	}

	filtered := make([]store.WordRecord, 0, len(words))
	for _, w := range words {
		if opts.Word >= 0 && w.Index != opts.Word {
			continue
		}
		if byRule != nil && !byRule[w.Index] {
			continue
		}
		if opts.Changed && len(w.Changes) == 0 {
			continue
		}
		filtered = append(filtered, w)
	}

	return formatter.Success(&TraceResult{Run: run, Words: filtered})
}

// wordsChangedBy returns the indexes of the run's words that rule changed.
func wordsChangedBy(ctx context.Context, st *store.Store, runID string, rule int) (map[int]bool, error) {
	sql, args, err := query.Compile(query.Join{
		Left: query.Select{
			From:    "words",
			Columns: []string{"idx"},
			Filter:  query.Equals{Column: "run_id", Value: runID},
		},
		Right: query.Select{
			From:   "changes",
			Filter: query.Equals{Column: "rule_id", Value: rule},
		},
		On: []query.On{{Left: "run_id", Right: "run_id"}, {Left: "idx", Right: "word_idx"}},
	})
	if err != nil {
		return nil, err
	}

	rows, err := st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changed := make(map[int]bool)
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		changed[idx] = true
	}
	return changed, rows.Err()
}
