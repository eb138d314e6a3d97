package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sce/internal/engine"
	"github.com/roach88/sce/internal/ir"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // defaults to the latest run
}

// ReplayMismatch is one word whose replay differed from the record.
type ReplayMismatch struct {
	Index         int    `json:"index"`
	Input         string `json:"input"`
	Recorded      string `json:"recorded"`
	Replayed      string `json:"replayed"`
	OutputDiffers bool   `json:"output_differs"`
	RecordedHash  string `json:"recorded_hash,omitempty"`
	ReplayedHash  string `json:"replayed_hash,omitempty"`
}

// ReplayResult holds the outcome of replaying a run.
type ReplayResult struct {
	RunID         string           `json:"run_id"`
	Words         int              `json:"words"`
	Deterministic bool             `json:"deterministic"`
	RulesetDrift  bool             `json:"ruleset_drift"`
	Mismatches    []ReplayMismatch `json:"mismatches"`
}

// WriteText renders the verdict and each mismatch.
func (r *ReplayResult) WriteText(w io.Writer) error {
	if r.RulesetDrift {
		fmt.Fprintln(w, "warning: the rules changed since this run was recorded")
	}
	if r.Deterministic {
		fmt.Fprintf(w, "✓ Run %s replayed identically (%d words)\n", r.RunID, r.Words)
		return nil
	}
	fmt.Fprintf(w, "✗ Run %s: %d of %d words differ\n\n", r.RunID, len(r.Mismatches), r.Words)
	for _, m := range r.Mismatches {
		if m.OutputDiffers {
			fmt.Fprintf(w, "  [%d] %s: recorded %s, replayed %s\n", m.Index, m.Input, m.Recorded, m.Replayed)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s: trace hash %s, replayed %s\n", m.Index, m.Input, shortHash(m.RecordedHash), shortHash(m.ReplayedHash))
	}
	return nil
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <project-or-rules>",
		Short: "Re-apply a recorded run and verify determinism",
		Long: `Re-apply the rules to the inputs of a recorded run and compare every
output and trace hash with what was recorded.

The project should be the one the run was recorded with; when its
ruleset hash differs a warning is printed and differences are expected.

Exit codes:
  0 - Every word replayed identically
  1 - At least one word differs
  2 - Command error (database not found, rules do not compile, etc.)

Examples:
  sce replay latin.cue --db runs.db
  sce replay latin.cue --db runs.db --run 0192f1c4-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runReplay(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (default: latest run)")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := slog.Default()

	project, err := loadInput(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	rs, err := compileProject(formatter, project, project.Segmenter())
	if err != nil {
		return err
	}
	hash, err := ir.RulesetHash(rs)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompileFailed, "hashing ruleset", err, nil)
	}

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

	drift := run.RulesetHash != hash
	if drift {
		logger.Warn("ruleset hash differs from recorded run",
			"run", run.ID,
			"recorded", run.RulesetHash,
			"current", hash)
	}

	recorded := make([]engine.Recorded, len(words))
	for i, w := range words {
		recorded[i] = engine.Recorded{Input: w.Input, Output: w.Output, TraceHash: w.TraceHash}
	}
	formatter.VerboseLog("Replaying run %s (%d words)", run.ID, len(recorded))

	eng := engine.New(rs, project.EngineOptions(logger)...)
	report, err := eng.Replay(ctx, recorded)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeApplyFailed, "replaying run", err, nil)
	}

	result := &ReplayResult{
		RunID:         run.ID,
		Words:         report.Words,
		Deterministic: report.OK(),
		RulesetDrift:  drift,
		Mismatches:    make([]ReplayMismatch, len(report.Mismatches)),
	}
	for i, m := range report.Mismatches {
		result.Mismatches[i] = ReplayMismatch{
			Index:         m.Index,
			Input:         m.Input.String(),
			Recorded:      m.Want.String(),
			Replayed:      m.Got.String(),
			OutputDiffers: m.OutputDiffers,
			RecordedHash:  m.WantHash,
			ReplayedHash:  m.GotHash,
		}
		formatter.VerboseLog("mismatch: %s", m)
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("replay differs on %d of %d words", len(result.Mismatches), result.Words))
	}
	return nil
}
