package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/testutil"
)

// createTestStore creates a new store in a temp dir with deterministic IDs
// and seq values.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(testutil.NewFixedIDGenerator()),
		WithSequencer(testutil.NewDeterministicClock()),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleWords returns two words: one rewritten by two rules, one untouched.
func sampleWords() []WordRecord {
	return []WordRecord{
		{
			Input:     testutil.Word("apa"),
			Output:    testutil.Word("abe"),
			TraceHash: "hash-0",
			Changes: []ir.ChangeRecord{
				{
					RuleID: 0,
					Line:   1,
					Source: "[P] > [B] / [V]_[V]",
					Sites:  []ir.Span{{Start: 1, End: 2}},
					Before: testutil.Word("apa"),
					After:  testutil.Word("aba"),
					Passes: 1,
				},
				{
					RuleID:    2,
					Line:      3,
					Source:    "@persist a > e / _#",
					Sites:     []ir.Span{{Start: 2, End: 3}},
					Before:    testutil.Word("aba"),
					After:     testutil.Word("abe"),
					Passes:    2,
					Truncated: true,
					Diagnostics: []ir.Diagnostic{
						{Code: ir.DiagTruncated, RuleID: 2, Branch: ir.RuleLevel, Line: 3, Message: "stopped"},
					},
				},
			},
			Diagnostics: []ir.Diagnostic{
				{Code: ir.DiagTruncated, RuleID: 2, Branch: ir.RuleLevel, Line: 3, Message: "stopped"},
			},
		},
		{
			Input:     testutil.Word("xyz"),
			Output:    testutil.Word("xyz"),
			TraceHash: "hash-1",
		},
	}
}
