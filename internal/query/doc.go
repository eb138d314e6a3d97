// Package query describes read-only questions about recorded runs and
// compiles them to parameterized SQLite.
//
// A Query is either a Select over one of the run tables or an inner Join
// of two Selects on equal columns:
//
//	Join{
//	  Left:  Select{From: "words", Columns: []string{"idx", "input"},
//	                Filter: Equals{Column: "run_id", Value: runID}},
//	  Right: Select{From: "changes", Filter: Equals{Column: "rule_id", Value: 3}},
//	  On:    []On{{Left: "run_id", Right: "run_id"}, {Left: "idx", Right: "word_idx"}},
//	}
//
// compiles to
//
//	SELECT words.idx, words.input FROM words
//	INNER JOIN changes ON words.run_id = changes.run_id AND words.idx = changes.word_idx
//	WHERE words.run_id = ? AND changes.rule_id = ?
//	ORDER BY words.run_id ASC COLLATE BINARY, words.idx ASC
//
// Guarantees:
//   - Table and column names come only from the schema whitelist in
//     Tables; anything else fails validation before SQL is produced.
//   - Values are always bound parameters, never interpolated.
//   - Every query ends in the table's stable ORDER BY, so results never
//     depend on SQLite's scan order.
//
// Words (ir.Word) compare against word columns in the same JSON form the
// store writes them.
package query
