package query

import (
	"fmt"
	"strings"
)

// ValidationError lists every problem found in a query.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

// Validate checks that a query names only whitelisted tables and columns
// and that joins have a condition. It reports every problem, not just the
// first. Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	case Join:
		v.validateJoin(query)
	case *Join:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateJoin(*query)
	default:
		v.addProblem("unsupported query type %T", q)
	}
}

// table returns the table, recording a problem when it is unknown.
func (v *validator) table(name string) (Table, bool) {
	t, ok := Tables[name]
	if !ok {
		v.addProblem("unknown table %q", name)
	}
	return t, ok
}

func (v *validator) column(t Table, table, col string) {
	if !t.HasColumn(col) {
		v.addProblem("unknown column %q in table %s", col, table)
	}
}

func (v *validator) validateSelect(sel Select) {
	t, ok := v.table(sel.From)
	if !ok {
		return
	}
	for _, c := range sel.Columns {
		v.column(t, sel.From, c)
	}
	v.validatePredicate(t, sel.From, sel.Filter)
}

func (v *validator) validateJoin(j Join) {
	v.validateSelect(j.Left)
	v.validateSelect(j.Right)
	if j.Left.From == j.Right.From {
		v.addProblem("self join of %s is not supported", j.Left.From)
	}
	if len(j.On) == 0 {
		v.addProblem("join of %s and %s has no condition", j.Left.From, j.Right.From)
	}
	if len(j.Left.Columns) == 0 && len(j.Right.Columns) == 0 {
		v.addProblem("join must list its columns")
	}

	lt, lok := Tables[j.Left.From]
	rt, rok := Tables[j.Right.From]
	for _, on := range j.On {
		if lok {
			v.column(lt, j.Left.From, on.Left)
		}
		if rok {
			v.column(rt, j.Right.From, on.Right)
		}
	}
}

func (v *validator) validatePredicate(t Table, table string, p Predicate) {
	switch pred := p.(type) {
	case nil:
		// no filter
	case Equals:
		v.validateEquals(t, table, pred)
	case *Equals:
		v.validateEquals(t, table, *pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(t, table, sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(t, table, sub)
		}
	default:
		v.addProblem("unsupported predicate type %T", p)
	}
}

func (v *validator) validateEquals(t Table, table string, eq Equals) {
	v.column(t, table, eq.Column)
	if _, err := Param(eq.Value); err != nil {
		v.addProblem("column %s: %v", eq.Column, err)
	}
}
