package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sce/internal/ir"
)

// WriteRun records a run and all of its words in one transaction. Either
// the whole run persists or none of it does.
//
// An empty run.ID is filled from the store's IDGenerator; Seq always comes
// from the store's clock. Empty versions default to ir.EngineVersion and
// ir.IRVersion. The stored header is returned.
func (s *Store) WriteRun(ctx context.Context, run Run, words []WordRecord) (Run, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}
	if run.EngineVersion == "" {
		run.EngineVersion = ir.EngineVersion
	}
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}
	run.WordCount = len(words)
	run.Seq = s.clock.Next()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, project, ruleset_hash, engine_version, ir_version, word_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		run.Project,
		run.RulesetHash,
		run.EngineVersion,
		run.IRVersion,
		run.WordCount,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	for i, w := range words {
		if err := writeWord(ctx, tx, run.ID, i, w); err != nil {
			return Run{}, fmt.Errorf("write run: word %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	return run, nil
}

// writeWord stores one word under the position it has in the run; the
// record's own Index is ignored.
func writeWord(ctx context.Context, tx *sql.Tx, runID string, idx int, w WordRecord) error {
	input, err := marshalWord(w.Input)
	if err != nil {
		return err
	}
	output, err := marshalWord(w.Output)
	if err != nil {
		return err
	}
	diags, err := marshalDiagnostics(w.Diagnostics)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO words
		(run_id, idx, input, output, trace_hash, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, idx, input, output, w.TraceHash, diags)
	if err != nil {
		return fmt.Errorf("insert word: %w", err)
	}

	for ord, c := range w.Changes {
		if err := writeChange(ctx, tx, runID, idx, ord, c); err != nil {
			return fmt.Errorf("change %d: %w", ord, err)
		}
	}
	return nil
}

func writeChange(ctx context.Context, tx *sql.Tx, runID string, wordIdx, ord int, c ir.ChangeRecord) error {
	sites, err := marshalSites(c.Sites)
	if err != nil {
		return err
	}
	before, err := marshalWord(c.Before)
	if err != nil {
		return err
	}
	after, err := marshalWord(c.After)
	if err != nil {
		return err
	}
	diags, err := marshalDiagnostics(c.Diagnostics)
	if err != nil {
		return err
	}

	truncated := 0
	if c.Truncated {
		truncated = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO changes
		(run_id, word_idx, ord, rule_id, line, source, sites, before, after, passes, truncated, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		wordIdx,
		ord,
		c.RuleID,
		c.Line,
		c.Source,
		sites,
		before,
		after,
		c.Passes,
		truncated,
		diags,
	)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}
