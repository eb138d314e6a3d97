package engine

// # Replay
//
// A run is reproducible when the same ruleset applied to the same inputs
// yields byte-identical outputs and traces. Nothing in the engine reads a
// clock, a random source, or map iteration order, so this holds by
// construction; Replay checks it against a recorded run.
//
// Each recorded word carries its output and, optionally, a TraceHash
// (ir.TraceHash over canonical JSON of output and trace). Replay re-applies
// the inputs through ApplyLexicon, the same path as the original run, and
// reports every word whose output or hash differs.

import (
	"context"
	"fmt"

	"github.com/roach88/sce/internal/ir"
)

// Recorded is one word of an earlier run.
type Recorded struct {
	Input  ir.Word
	Output ir.Word
	// TraceHash is compared only when non-empty.
	TraceHash string
}

// Mismatch describes a word whose replay differs from the record.
type Mismatch struct {
	Index         int
	Input         ir.Word
	Want          ir.Word
	Got           ir.Word
	WantHash      string
	GotHash       string
	OutputDiffers bool // false when only the trace hash differs
}

func (m Mismatch) String() string {
	if m.OutputDiffers {
		return fmt.Sprintf("word %d %q: recorded %q, replayed %q", m.Index, m.Input.String(), m.Want.String(), m.Got.String())
	}
	return fmt.Sprintf("word %d %q: trace hash %s, replayed %s", m.Index, m.Input.String(), m.WantHash, m.GotHash)
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	Words      int
	Mismatches []Mismatch
}

// OK reports whether every word replayed identically.
func (r ReplayReport) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay re-applies the recorded inputs and compares the results.
func (e *Engine) Replay(ctx context.Context, recorded []Recorded) (ReplayReport, error) {
	words := make([]ir.Word, len(recorded))
	for i, r := range recorded {
		words[i] = r.Input
	}

	results, err := e.ApplyLexicon(ctx, words)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	report := ReplayReport{Words: len(recorded)}
	for i, rec := range recorded {
		got := results[i]
		if !got.Output.Equal(rec.Output) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Index:         i,
				Input:         rec.Input,
				Want:          rec.Output,
				Got:           got.Output,
				OutputDiffers: true,
			})
			continue
		}
		if rec.TraceHash == "" {
			continue
		}
		h, err := got.TraceHash()
		if err != nil {
			return ReplayReport{}, fmt.Errorf("replay word %d: %w", i, err)
		}
		if h != rec.TraceHash {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Index:    i,
				Input:    rec.Input,
				Want:     rec.Output,
				Got:      got.Output,
				WantHash: rec.TraceHash,
				GotHash:  h,
			})
		}
	}

	e.logger.Info("replay finished",
		"words", report.Words,
		"mismatches", len(report.Mismatches))
	return report, nil
}
