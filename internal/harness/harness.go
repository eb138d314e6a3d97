package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sce/internal/category"
	"github.com/roach88/sce/internal/compiler"
	"github.com/roach88/sce/internal/engine"
	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/segment"
	"github.com/roach88/sce/internal/store"
	"github.com/roach88/sce/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a real engine and records the run in a
// private store, with deterministic run IDs and sequence numbers.
type Harness struct {
	store       *store.Store
	engine      *engine.Engine
	seg         *segment.Segmenter
	logger      *slog.Logger
	rulesetHash string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Define categories and compile the rules
// 3. Evolve every word and compare expected outputs
// 4. Record the run in the store
// 5. Evaluate assertions against the trace and the stored run
//
// A returned error means the scenario could not run at all (bad rules,
// engine failure); a failing expectation is reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.Name)),
		store.WithSequencer(testutil.NewDeterministicClock()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	seg := scenarioSegmenter(scenario)

	rs, err := compileScenario(scenario, seg)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}
	hash, err := ir.RulesetHash(rs)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithDisabledOptional(scenario.DisabledOptional...),
	}
	if scenario.MaxPasses > 0 {
		opts = append(opts, engine.WithMaxPasses(scenario.MaxPasses))
	}

	h := &Harness{
		store:       st,
		engine:      engine.New(rs, opts...),
		seg:         seg,
		logger:      logger,
		rulesetHash: hash,
	}

	ctx := context.Background()

	result := NewResult()
	result.RulesetHash = hash
	if err := h.executeWords(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to execute words: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		RunID: result.RunID,
	}
	assertionErrors := EvaluateAssertions(result, scenario.Assertions, actx)
	for _, errMsg := range assertionErrors {
		result.AddError(errMsg)
	}

	return result, nil
}

func scenarioSegmenter(s *Scenario) *segment.Segmenter {
	sep := s.Separator
	if sep == "" {
		sep = segment.DefaultSeparator
	}
	return segment.New(s.Graphs, sep, s.Normalize)
}

// compileScenario defines the scenario categories and compiles its rules.
func compileScenario(s *Scenario, seg *segment.Segmenter) (*ir.Ruleset, error) {
	table := category.NewTable()
	for _, c := range s.Categories {
		members := make([]ir.Word, len(c.Members))
		for i, m := range c.Members {
			members[i] = seg.Split(m)
		}
		table.Define(c.Name, members)
	}
	return compiler.Compile(s.Rules, table,
		compiler.WithSegmenter(seg),
		compiler.WithFilename(s.Name),
	)
}

// executeWords evolves every word, checks expected outputs, and records
// the run.
func (h *Harness) executeWords(ctx context.Context, s *Scenario, result *Result) error {
	words := make([]ir.Word, len(s.Words))
	for i, w := range s.Words {
		words[i] = h.seg.Split(w.Input)
	}

	results, err := h.engine.ApplyLexicon(ctx, words)
	if err != nil {
		return err
	}

	records := make([]store.WordRecord, len(results))
	for i, res := range results {
		wc := s.Words[i]
		out := h.seg.Join(res.Output)

		result.AddWordTrace(WordTrace{
			Input:       wc.Input,
			Output:      out,
			Changes:     res.Trace,
			Diagnostics: res.Diagnostics,
		})
		if wc.Expect != nil && *wc.Expect != out {
			result.AddError(fmt.Sprintf("word %d %q: expected %q, got %q", i, wc.Input, *wc.Expect, out))
		}

		traceHash, err := res.TraceHash()
		if err != nil {
			return fmt.Errorf("word %d: %w", i, err)
		}
		records[i] = store.WordRecord{
			Input:       res.Input,
			Output:      res.Output,
			TraceHash:   traceHash,
			Diagnostics: res.Diagnostics,
			Changes:     res.Trace,
		}

		h.logger.Info("word evolved",
			"word", i,
			"input", wc.Input,
			"output", out,
			"changes", len(res.Trace),
		)
	}

	run, err := h.store.WriteRun(ctx, store.Run{
		Project:     s.Name,
		RulesetHash: h.rulesetHash,
	}, records)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	result.RunID = run.ID
	return nil
}
