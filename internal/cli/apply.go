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
	"github.com/roach88/sce/internal/segment"
	"github.com/roach88/sce/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Lexicon   string   // extra lexicon file, one word per line
	Trace     bool     // include change records in the output
	Database  string   // record the run in this SQLite database
	Workers   int      // overrides the project setting when > 0
	MaxPasses int      // overrides the project setting when > 0
	Disable   []string // optional rule classes to turn off
}

// AppliedWord is one evolved word in command output.
type AppliedWord struct {
	Input       string            `json:"input"`
	Output      string            `json:"output"`
	Changes     []ir.ChangeRecord `json:"changes,omitempty"`
	Diagnostics []ir.Diagnostic   `json:"diagnostics,omitempty"`
}

// ApplyResult is the output of the apply command.
type ApplyResult struct {
	Project     string        `json:"project"`
	RulesetHash string        `json:"ruleset_hash"`
	RunID       string        `json:"run_id,omitempty"`
	Words       []AppliedWord `json:"words"`
	Truncated   int           `json:"truncated"`
	Cycles      int           `json:"cycles"`

	trace bool
	seg   *segment.Segmenter
}

// WriteText prints one "input → output" line per word, followed by the
// rules that changed it when tracing.
func (r *ApplyResult) WriteText(w io.Writer) error {
	for _, word := range r.Words {
		fmt.Fprintf(w, "%s → %s\n", word.Input, word.Output)
		if r.trace {
			for _, c := range word.Changes {
				fmt.Fprintf(w, "  line %d: %s: %s → %s", c.Line, c.Source, r.seg.Join(c.Before), r.seg.Join(c.After))
				if c.Passes > 1 {
					fmt.Fprintf(w, " (%d passes)", c.Passes)
				}
				if c.Truncated {
					fmt.Fprint(w, " [truncated]")
				}
				fmt.Fprintln(w)
			}
		}
		for _, d := range word.Diagnostics {
			fmt.Fprintf(w, "  ! %s\n", d)
		}
	}
	if r.Truncated > 0 || r.Cycles > 0 {
		fmt.Fprintf(w, "\n%d word(s) truncated, %d cycle(s)\n", r.Truncated, r.Cycles)
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "\nRecorded run %s\n", r.RunID)
	}
	return nil
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <project-or-rules> [word...]",
		Short: "Apply sound changes to a lexicon",
		Long: `Apply the rules of a project to its lexicon and print each word's
evolved form. Words given as arguments and words read from --lexicon are
added after the project's own lexicon.

With --db the run is recorded so it can be inspected with "trace" and
checked with "replay". Interrupting the command (Ctrl-C) stops starting
new words and exits 1.

Examples:
  sce apply latin.cue
  sce apply rules.sc --lexicon words.txt --trace
  sce apply latin.cue --db runs.db --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runApply(ctx, opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Lexicon, "lexicon", "l", "", "lexicon file, one word per line")
	cmd.Flags().BoolVarP(&opts.Trace, "trace", "t", false, "show the rules that changed each word")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "words processed at once (default: project setting or GOMAXPROCS)")
	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", 0, "pass bound for persistent rules (default: project setting or 100)")
	cmd.Flags().StringSliceVar(&opts.Disable, "disable", nil, "optional rule classes to turn off")

	return cmd
}

func runApply(ctx context.Context, opts *ApplyOptions, path string, extra []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := slog.Default()

	project, err := loadInput(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	if opts.Lexicon != "" {
		words, err := ReadLexicon(opts.Lexicon)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, "reading lexicon", err, nil)
		}
		project.Lexicon = append(project.Lexicon, words...)
	}
	project.Lexicon = append(project.Lexicon, extra...)
	if opts.Workers > 0 {
		project.Workers = opts.Workers
	}
	if opts.MaxPasses > 0 {
		project.MaxPasses = opts.MaxPasses
	}
	project.DisabledOptional = append(project.DisabledOptional, opts.Disable...)

	seg := project.Segmenter()
	rs, err := compileProject(formatter, project, seg)
	if err != nil {
		return err
	}
	hash, err := ir.RulesetHash(rs)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompileFailed, "hashing ruleset", err, nil)
	}
	for _, d := range rs.Diagnostics() {
		logger.Warn("compile diagnostic", "line", d.Line, "code", d.Code, "message", d.Message)
	}

	eng := engine.New(rs, project.EngineOptions(logger)...)
	words := project.Words(seg)
	formatter.VerboseLog("Applying %d rule(s) to %d word(s)", len(rs.Rules), len(words))

	results, err := eng.ApplyLexicon(ctx, words)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeApplyFailed, "applying rules", err, nil)
	}

	result := &ApplyResult{
		Project:     project.Name,
		RulesetHash: hash,
		Words:       make([]AppliedWord, len(results)),
		trace:       opts.Trace,
		seg:         seg,
	}
	for i, res := range results {
		aw := AppliedWord{
			Input:       seg.Join(res.Input),
			Output:      seg.Join(res.Output),
			Diagnostics: res.Diagnostics,
		}
		if opts.Trace {
			aw.Changes = res.Trace
		}
		if res.Truncated() {
			result.Truncated++
		}
		if res.Cycled() {
			result.Cycles++
		}
		result.Words[i] = aw
	}

	if opts.Database != "" {
		runID, err := recordRun(ctx, opts.Database, project.Name, hash, results)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, "recording run", err, nil)
		}
		result.RunID = runID
		logger.Info("run recorded", "run", runID, "words", len(results), "db", opts.Database)
	}

	return formatter.Success(result)
}

// recordRun stores the results as one run and returns its ID.
func recordRun(ctx context.Context, dbPath, project, hash string, results []engine.Result) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	records := make([]store.WordRecord, len(results))
	for i, res := range results {
		th, err := res.TraceHash()
		if err != nil {
			return "", fmt.Errorf("word %d: %w", i, err)
		}
		records[i] = store.WordRecord{
			Index:       i,
			Input:       res.Input,
			Output:      res.Output,
			TraceHash:   th,
			Diagnostics: res.Diagnostics,
			Changes:     res.Trace,
		}
	}

	run, err := st.WriteRun(ctx, store.Run{Project: project, RulesetHash: hash}, records)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}
