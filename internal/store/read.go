package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sce/internal/ir"
)

// ErrRunNotFound is returned when no run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// IsRunNotFound reports whether err is (or wraps) ErrRunNotFound.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

const runColumns = `id, seq, project, ruleset_hash, engine_version, ir_version, word_count`

// ReadRun retrieves a run header by ID.
// Returns ErrRunNotFound if no such run exists.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %q: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %q: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the run with the highest seq.
// Returns ErrRunNotFound if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run ordered by seq ASC.
//
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadWords returns the words of a run ordered by index, each with its
// change records.
//
// Returns an empty slice (not nil) if the run has no words.
func (s *Store) ReadWords(ctx context.Context, runID string) ([]WordRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, input, output, trace_hash, diagnostics
		FROM words
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}

	words := []WordRecord{}
	for rows.Next() {
		var w WordRecord
		var input, output, diags string
		if err := rows.Scan(&w.Index, &input, &output, &w.TraceHash, &diags); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan word: %w", err)
		}
		if w.Input, err = unmarshalWord(input); err != nil {
			rows.Close()
			return nil, err
		}
		if w.Output, err = unmarshalWord(output); err != nil {
			rows.Close()
			return nil, err
		}
		if w.Diagnostics, err = unmarshalDiagnostics(diags); err != nil {
			rows.Close()
			return nil, err
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate words: %w", err)
	}
	// The store holds a single connection; release it before the next query.
	rows.Close()

	for i := range words {
		changes, err := s.ReadChanges(ctx, runID, words[i].Index)
		if err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			words[i].Changes = changes
		}
	}
	return words, nil
}

// ReadChanges returns the change records of one word ordered by ord.
//
// Returns an empty slice (not nil) if the word was unchanged.
func (s *Store) ReadChanges(ctx context.Context, runID string, wordIdx int) ([]ir.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, line, source, sites, before, after, passes, truncated, diagnostics
		FROM changes
		WHERE run_id = ? AND word_idx = ?
		ORDER BY ord ASC
	`, runID, wordIdx)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []ir.ChangeRecord{}
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	err := row.Scan(
		&r.ID,
		&r.Seq,
		&r.Project,
		&r.RulesetHash,
		&r.EngineVersion,
		&r.IRVersion,
		&r.WordCount,
	)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

func scanChange(rows *sql.Rows) (ir.ChangeRecord, error) {
	var (
		c                           ir.ChangeRecord
		sites, before, after, diags string
		truncated                   int
	)
	err := rows.Scan(&c.RuleID, &c.Line, &c.Source, &sites, &before, &after, &c.Passes, &truncated, &diags)
	if err != nil {
		return ir.ChangeRecord{}, fmt.Errorf("scan change: %w", err)
	}
	c.Truncated = truncated != 0

	if c.Sites, err = unmarshalSites(sites); err != nil {
		return ir.ChangeRecord{}, err
	}
	if c.Before, err = unmarshalWord(before); err != nil {
		return ir.ChangeRecord{}, err
	}
	if c.After, err = unmarshalWord(after); err != nil {
		return ir.ChangeRecord{}, err
	}
	if c.Diagnostics, err = unmarshalDiagnostics(diags); err != nil {
		return ir.ChangeRecord{}, err
	}
	return c, nil
}
