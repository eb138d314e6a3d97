package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/sce/internal/query"
	"github.com/roach88/sce/internal/store"
)

// runScopedTables are the tables final_state may query; each is filtered to
// the scenario's own run.
var runScopedTables = map[string]string{
	"runs":    "id",
	"words":   "run_id",
	"changes": "run_id",
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []WordTrace // Traces for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, w := range e.Trace {
			fmt.Fprintf(&buf, "  %s -> %s %v\n", w.Input, w.Output, changedRules(w))
		}
	}

	return buf.String()
}

func changedRules(w WordTrace) []int {
	ids := make([]int, len(w.Changes))
	for i, c := range w.Changes {
		ids[i] = c.RuleID
	}
	return ids
}

// wordTrace looks up the trace of a word or returns an AssertionError.
func wordTrace(result *Result, typ, input string) (WordTrace, error) {
	w, ok := result.word(input)
	if !ok {
		return WordTrace{}, &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("word %q in scenario", input),
			Actual:   "no such word",
		}
	}
	return w, nil
}

// assertTraceContains checks that the rule changed the word.
func assertTraceContains(result *Result, assertion Assertion) error {
	w, err := wordTrace(result, AssertTraceContains, assertion.Word)
	if err != nil {
		return err
	}
	for _, c := range w.Changes {
		if c.RuleID == *assertion.Rule {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("rule %d changed %q", *assertion.Rule, assertion.Word),
		Actual:   fmt.Sprintf("rules %v changed it", changedRules(w)),
		Trace:    []WordTrace{w},
	}
}

// assertTraceOrder checks that the rules changed the word in the given
// order. Other rules may change it in between.
func assertTraceOrder(result *Result, assertion Assertion) error {
	w, err := wordTrace(result, AssertTraceOrder, assertion.Word)
	if err != nil {
		return err
	}

	// Step 1: Find the position of each expected rule
	positions := make(map[int]int)
	for i, c := range w.Changes {
		if positions[c.RuleID] == 0 {
			positions[c.RuleID] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all rules found
	for _, id := range assertion.Rules {
		if positions[id] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all rules present: %v", assertion.Rules),
				Actual:   fmt.Sprintf("missing rule: %d", id),
				Trace:    []WordTrace{w},
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Rules); i++ {
		prev := assertion.Rules[i-1]
		curr := assertion.Rules[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("rules in order: %v", assertion.Rules),
				Actual: fmt.Sprintf("%d (pos %d) should be before %d (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: []WordTrace{w},
			}
		}
	}

	return nil
}

// assertTraceCount checks that the rule changed exactly Count words.
func assertTraceCount(result *Result, assertion Assertion) error {
	count := 0
	for _, w := range result.Trace {
		for _, c := range w.Changes {
			if c.RuleID == *assertion.Rule {
				count++
				break
			}
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("rule %d changed %d words", *assertion.Rule, assertion.Count),
			Actual:   fmt.Sprintf("%d words", count),
			Trace:    result.Trace,
		}
	}

	return nil
}

// assertDiagnostic checks that the word raised a diagnostic with the code.
func assertDiagnostic(result *Result, assertion Assertion) error {
	w, err := wordTrace(result, AssertDiagnostic, assertion.Word)
	if err != nil {
		return err
	}
	codes := make([]string, len(w.Diagnostics))
	for i, d := range w.Diagnostics {
		if string(d.Code) == assertion.Code {
			return nil
		}
		codes[i] = string(d.Code)
	}

	return &AssertionError{
		Type:     AssertDiagnostic,
		Expected: fmt.Sprintf("diagnostic %s on %q", assertion.Code, assertion.Word),
		Actual:   fmt.Sprintf("diagnostics %v", codes),
		Trace:    []WordTrace{w},
	}
}

// assertFinalState checks that the recorded run contains the expected
// values. Queries are parameterized, scoped to the scenario's run, and
// validated using subset semantics.
//
// Table and column names are checked against the store schema before any
// SQL is built.
func assertFinalState(ctx context.Context, st *store.Store, runID string, assertion Assertion) error {
	runColumn, ok := runScopedTables[assertion.Table]
	if !ok {
		return fmt.Errorf("final_state: unknown table %q (want runs, words, or changes)", assertion.Table)
	}

	conditions := make(map[string]any, len(assertion.Where))
	for k, v := range assertion.Where {
		conditions[k] = whereValue(v)
	}
	filter := query.Where(conditions)
	filter.Predicates = append([]query.Predicate{query.Equals{Column: runColumn, Value: runID}}, filter.Predicates...)

	sql, args, err := query.Compile(query.Select{From: assertion.Table, Filter: filter})
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	rows, err := st.Query(ctx, sql, args...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		whereDesc := formatWhereClause(assertion.Where)
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	}

	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Check for multiple matching rows (would indicate ambiguous assertion)
	if rows.Next() {
		whereDesc := formatWhereClause(assertion.Where)
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]interface{})
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	// Sorted for a deterministic first failure
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// whereValue converts a YAML-decoded value to a query value. Lists are
// words.
func whereValue(v interface{}) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	case []interface{}:
		return yamlWord(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// yamlWord converts a YAML list of symbols.
func yamlWord(list []interface{}) []string {
	w := make([]string, len(list))
	for i, v := range list {
		w[i] = fmt.Sprintf("%v", v)
	}
	return w
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares expected and actual values from store tables.
// Handles type coercion for SQLite values which may be returned as different types.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	// SQLite TEXT may come back as []byte
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		if actualStr, ok := actual.(string); ok {
			return exp == actualStr
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	case []interface{}:
		if actualStr, ok := actual.(string); ok {
			want, _ := query.Param(yamlWord(exp))
			return want == actualStr
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result, assertion)
		case AssertDiagnostic:
			err = assertDiagnostic(result, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, actx.RunID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
