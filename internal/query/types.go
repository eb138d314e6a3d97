package query

import "sort"

// Query is a Select or a Join.
//
// This is a sealed interface - only types in this package implement it,
// so the compiler's type switches are exhaustive.
type Query interface {
	queryNode()
}

// Predicate filters rows: Equals or And.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select reads rows of one table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <stable key>
//
// Nil Columns selects every column. A nil Filter matches every row.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
}

func (Select) queryNode() {}

// Join is an inner join of two selects. On lists column pairs that must be
// equal; it may not be empty, so cross joins cannot be expressed. The
// result carries the columns of both sides, left first, and is ordered by
// the left table's stable key.
type Join struct {
	Left  Select
	Right Select
	On    []On
}

func (Join) queryNode() {}

// On pairs a left column with a right column.
type On struct {
	Left  string
	Right string
}

// Equals matches rows whose Column equals Value.
//
// Value may be a string, an int, an int64, a bool, or a word (ir.Word or
// []string), which compares against the stored JSON form.
type Equals struct {
	Column string
	Value  any
}

func (Equals) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches every
// row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where builds an And of Equals from column/value pairs, sorted by column
// for a stable parameter order.
func Where(conditions map[string]any) And {
	cols := make([]string, 0, len(conditions))
	for c := range conditions {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	and := And{Predicates: make([]Predicate, 0, len(cols))}
	for _, c := range cols {
		and.Predicates = append(and.Predicates, Equals{Column: c, Value: conditions[c]})
	}
	return and
}

// Table describes one run table: its columns and its stable ordering.
type Table struct {
	Columns []string
	// Order is the unique key the results are sorted by.
	Order []string
	// Text marks order columns compared with COLLATE BINARY.
	Text map[string]bool
}

// Tables is the schema whitelist: the only tables and columns a query may
// name.
var Tables = map[string]Table{
	"runs": {
		Columns: []string{"id", "seq", "project", "ruleset_hash", "engine_version", "ir_version", "word_count"},
		Order:   []string{"seq"},
	},
	"words": {
		Columns: []string{"run_id", "idx", "input", "output", "trace_hash", "diagnostics"},
		Order:   []string{"run_id", "idx"},
		Text:    map[string]bool{"run_id": true},
	},
	"changes": {
		Columns: []string{"run_id", "word_idx", "ord", "rule_id", "line", "source", "sites", "before", "after", "passes", "truncated", "diagnostics"},
		Order:   []string{"run_id", "word_idx", "ord"},
		Text:    map[string]bool{"run_id": true},
	},
}

// HasColumn reports whether the table has the column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
