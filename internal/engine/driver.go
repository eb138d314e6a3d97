package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/match"
)

// DefaultMaxPasses bounds how often a persistent rule re-scans one word.
const DefaultMaxPasses = 100

// Engine applies a compiled ruleset to words.
//
// An Engine holds no per-word state. The ruleset is read-only, so Apply
// may be called from many goroutines at once.
type Engine struct {
	rs        *ir.Ruleset
	maxPasses int
	maxSteps  int
	workers   int
	disabled  map[string]bool
	strict    bool
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxPasses sets the pass bound for persistent rules.
//
// Default: 100 passes (DefaultMaxPasses)
// Values below 1 are ignored.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

// WithWorkers limits how many words ApplyLexicon processes at once.
// Default: runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithDisabledOptional turns off every @optional rule of the given classes.
func WithDisabledOptional(classes ...string) Option {
	return func(e *Engine) {
		for _, c := range classes {
			e.disabled[c] = true
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStrictInvariants makes invariant violations panic instead of
// returning an INVARIANT RuntimeError.
func WithStrictInvariants() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// WithMatchBudget sets the step budget of each pattern search.
// Default: match.DefaultMaxSteps.
func WithMatchBudget(steps int) Option {
	return func(e *Engine) {
		if steps > 0 {
			e.maxSteps = steps
		}
	}
}

// New creates an Engine for rs. The ruleset must not be modified afterwards.
func New(rs *ir.Ruleset, opts ...Option) *Engine {
	if rs == nil {
		rs = &ir.Ruleset{}
	}
	e := &Engine{
		rs:        rs,
		maxPasses: DefaultMaxPasses,
		maxSteps:  match.DefaultMaxSteps,
		workers:   runtime.GOMAXPROCS(0),
		disabled:  make(map[string]bool),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ruleset returns the ruleset the engine applies.
func (e *Engine) Ruleset() *ir.Ruleset {
	return e.rs
}

// Result is the outcome of applying the ruleset to one word.
type Result struct {
	Input  ir.Word `json:"input"`
	Output ir.Word `json:"output"`

	// Trace lists, in rule order, only the rules that changed the word.
	Trace []ir.ChangeRecord `json:"trace"`

	// Diagnostics raised while applying, such as truncated passes.
	Diagnostics []ir.Diagnostic `json:"diagnostics,omitempty"`
}

// Truncated reports whether any persistent rule hit the pass bound.
func (r Result) Truncated() bool {
	for _, d := range r.Diagnostics {
		if d.Code == ir.DiagTruncated {
			return true
		}
	}
	return false
}

// Cycled reports whether any persistent rule reproduced an earlier form.
func (r Result) Cycled() bool {
	for _, d := range r.Diagnostics {
		if d.Code == ir.DiagCycle {
			return true
		}
	}
	return false
}

// Err converts the first truncation or cycle diagnostic into a
// RuntimeError. It returns nil when the word settled normally.
func (r Result) Err() error {
	for _, d := range r.Diagnostics {
		switch d.Code {
		case ir.DiagTruncated:
			return &RuntimeError{
				Code:    ErrCodeTruncated,
				Message: d.Message,
				RuleID:  d.RuleID,
				Word:    r.Input.String(),
			}
		case ir.DiagCycle:
			return NewCycleError(r.Input.String(), d.RuleID, r.Output.String())
		}
	}
	return nil
}

// TraceHash fingerprints the output and trace.
func (r Result) TraceHash() (string, error) {
	return ir.TraceHash(r.Output, r.Trace)
}

// Apply runs every rule, in order, over word.
//
// Truncation and cycles are diagnostics on the result, not errors. The
// returned error is a *RuntimeError: CANCELLED when ctx ends, INVARIANT
// when the engine detects a defect. On error the Output is nil.
func (e *Engine) Apply(ctx context.Context, word ir.Word) (Result, error) {
	res := Result{Input: word.Clone(), Trace: []ir.ChangeRecord{}}
	cur := res.Input

	for i := range e.rs.Rules {
		rule := &e.rs.Rules[i]
		if err := ctx.Err(); err != nil {
			return Result{Input: res.Input}, e.wrap(word, err)
		}
		if !e.enabled(rule) {
			e.logger.Debug("optional rule disabled",
				"rule", rule.ID,
				"class", rule.OptionalClass)
			continue
		}

		run, err := e.applyRule(ctx, rule, cur)
		if err != nil {
			return Result{Input: res.Input}, e.wrap(word, err)
		}
		res.Diagnostics = append(res.Diagnostics, run.diags...)

		if !run.word.Equal(cur) {
			res.Trace = append(res.Trace, ir.ChangeRecord{
				RuleID:      rule.ID,
				Line:        rule.Line,
				Source:      rule.Source,
				Sites:       run.sites,
				Before:      cur,
				After:       run.word,
				Passes:      run.passes,
				Truncated:   run.truncated,
				Diagnostics: run.diags,
			})
			e.logger.Debug("rule applied",
				"rule", rule.ID,
				"line", rule.Line,
				"before", cur.String(),
				"after", run.word.String(),
				"passes", run.passes)
		}
		cur = run.word
	}

	res.Output = cur
	return res, nil
}

func (e *Engine) enabled(rule *ir.Rule) bool {
	if !rule.Flags.Has(ir.FlagOptional) {
		return true
	}
	return !e.disabled[rule.OptionalClass]
}

func (e *Engine) wrap(word ir.Word, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Word == "" {
			re.Word = word.String()
		}
		return re
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewCancelledError(word.String(), err)
	}
	return fmt.Errorf("apply %q: %w", word.String(), err)
}

// ApplyLexicon applies the ruleset to every word, up to WithWorkers words
// at a time. Results are indexed like words.
//
// When ctx is cancelled no new words are started; the words already
// finished keep their results and the rest have a nil Output. The error is
// then a CANCELLED RuntimeError.
func (e *Engine) ApplyLexicon(ctx context.Context, words []ir.Word) ([]Result, error) {
	results := make([]Result, len(words))
	for i, w := range words {
		results[i].Input = w.Clone()
	}

	e.logger.Debug("applying lexicon",
		"words", len(words),
		"rules", len(e.rs.Rules),
		"workers", e.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, w := range words {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := e.Apply(gctx, w)
			if err != nil {
				return fmt.Errorf("word %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, NewCancelledError("", err)
	}
	return results, nil
}
