package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/sce/internal/ir"
)

// Compile validates q and converts it to parameterized SQL.
//
// Every query ends with the stable ORDER BY of its (left) table. Values
// are always parameters, never interpolated.
func Compile(q Query) (string, []any, error) {
	if err := Validate(q); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case Select:
		return compileSelect(query)
	case *Select:
		return compileSelect(*query)
	case Join:
		return compileJoin(query)
	case *Join:
		return compileJoin(*query)
	}
	// Validate rejects every other type.
	return "", nil, fmt.Errorf("unsupported query type: %T", q)
}

func compileSelect(sel Select) (string, []any, error) {
	cols := "*"
	if len(sel.Columns) > 0 {
		cols = strings.Join(sel.Columns, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, sel.From)

	where, params, err := compilePredicate("", sel.Filter)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		b.WriteString(" WHERE " + where)
	}
	b.WriteString(" ORDER BY " + orderBy("", sel.From))
	return b.String(), params, nil
}

func compileJoin(j Join) (string, []any, error) {
	l, r := j.Left.From, j.Right.From

	cols := make([]string, 0, len(j.Left.Columns)+len(j.Right.Columns))
	for _, c := range j.Left.Columns {
		cols = append(cols, l+"."+c)
	}
	for _, c := range j.Right.Columns {
		cols = append(cols, r+"."+c)
	}

	on := make([]string, len(j.On))
	for i, pair := range j.On {
		on[i] = fmt.Sprintf("%s.%s = %s.%s", l, pair.Left, r, pair.Right)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s INNER JOIN %s ON %s",
		strings.Join(cols, ", "), l, r, strings.Join(on, " AND "))

	var (
		where  []string
		params []any
	)
	for _, side := range []Select{j.Left, j.Right} {
		sql, p, err := compilePredicate(side.From+".", side.Filter)
		if err != nil {
			return "", nil, err
		}
		if sql != "" {
			where = append(where, sql)
			params = append(params, p...)
		}
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY " + orderBy(l+".", l))
	return b.String(), params, nil
}

// compilePredicate returns "" for a filter that matches every row.
func compilePredicate(prefix string, p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, nil
	case Equals:
		return compileEquals(prefix, pred)
	case *Equals:
		return compileEquals(prefix, *pred)
	case And:
		return compileAnd(prefix, pred)
	case *And:
		return compileAnd(prefix, *pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(prefix string, eq Equals) (string, []any, error) {
	param, err := Param(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("column %s: %w", eq.Column, err)
	}
	return prefix + eq.Column + " = ?", []any{param}, nil
}

func compileAnd(prefix string, and And) (string, []any, error) {
	var (
		parts  []string
		params []any
	)
	for _, pred := range and.Predicates {
		sql, p, err := compilePredicate(prefix, pred)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// orderBy renders the table's stable key. Text keys use COLLATE BINARY so
// the order does not depend on the SQLite build.
func orderBy(prefix, table string) string {
	t := Tables[table]
	keys := make([]string, len(t.Order))
	for i, k := range t.Order {
		keys[i] = prefix + k + " ASC"
		if t.Text[k] {
			keys[i] += " COLLATE BINARY"
		}
	}
	return strings.Join(keys, ", ")
}

// Param converts a predicate value to an SQL parameter. Words become the
// JSON text the store writes for them.
func Param(v any) (any, error) {
	switch val := v.(type) {
	case string, bool, int64:
		return val, nil
	case int:
		return int64(val), nil
	case ir.Word:
		return WordJSON(val), nil
	case []string:
		w := make(ir.Word, len(val))
		for i, s := range val {
			w[i] = ir.Symbol(s)
		}
		return WordJSON(w), nil
	case nil:
		return nil, fmt.Errorf("NULL is never stored")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// WordJSON renders w the way the store encodes a word column: a JSON
// array with HTML escaping disabled.
func WordJSON(w ir.Word) string {
	if w == nil {
		w = ir.Word{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(w) // a slice of strings always encodes
	return strings.TrimSpace(buf.String())
}
