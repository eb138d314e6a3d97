// Package match decides whether a pattern matches a word at a position.
//
// Matching is a backtracking search over an explicit frame stack. Greedy
// quantifiers explore their largest extent first and lazy ones their
// smallest. Every search is bounded by a step budget and polls its context,
// so a pathological pattern costs a diagnostic rather than a hung run.
//
// The matcher is read-only over the word, the pattern, and the category
// arena; it is safe to run many searches concurrently.
package match

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/sce/internal/ir"
)

// DefaultMaxSteps bounds a single search when Input.MaxSteps is zero.
const DefaultMaxSteps = 100_000

// pollInterval is how many steps run between context checks.
const pollInterval = 256

// Binding records which member of which category a correlation tag captured.
type Binding struct {
	Category int
	Member   int
}

// Bindings maps correlation tags to their captures.
type Bindings map[string]Binding

// Clone returns an independent copy.
func (b Bindings) Clone() Bindings {
	if b == nil {
		return Bindings{}
	}
	return maps.Clone(b)
}

// Input is everything a search reads.
type Input struct {
	Word  ir.Word
	Arena []ir.Category

	// Target is the matched target span. Contexts anchor on it and
	// target-copy elements read it.
	Target ir.Span

	// Bindings already captured; tagged categories must agree with them.
	Bindings Bindings

	// MaxSteps bounds the search; zero means DefaultMaxSteps.
	MaxSteps int
}

// Result is one successful match.
type Result struct {
	Span     ir.Span
	Bindings Bindings
}

// BudgetError is returned when a search exceeds its step budget.
type BudgetError struct {
	Steps int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("match budget of %d steps exceeded", e.Steps)
}

// IsBudgetExceeded reports whether err is a BudgetError.
func IsBudgetExceeded(err error) bool {
	var be *BudgetError
	return errors.As(err, &be)
}

// Match returns the longest match of p starting at start. Among equally
// long matches the first one found wins.
func Match(ctx context.Context, in Input, p ir.Pattern, start int) (Result, bool, error) {
	m := newMachine(ctx, in)
	best := Result{Span: ir.Span{Start: start, End: -1}}
	err := m.explore(p, start, m.initial(), func(end int, b *bindList) bool {
		if end > best.Span.End {
			best.Span.End = end
			best.Bindings = b.toMap()
		}
		return false
	})
	if err != nil {
		return Result{}, false, err
	}
	if best.Span.End < 0 {
		return Result{}, false, nil
	}
	return best, true, nil
}

// Candidates returns one match per distinct end position in exploration
// order: greedy quantifiers yield their longest extent first and lazy ones
// their shortest. Each carries the bindings of the first path that reached
// that end.
func Candidates(ctx context.Context, in Input, p ir.Pattern, start int) ([]Result, error) {
	m := newMachine(ctx, in)
	seen := map[int]bool{}
	var out []Result
	err := m.explore(p, start, m.initial(), func(end int, b *bindList) bool {
		if !seen[end] {
			seen[end] = true
			out = append(out, Result{Span: ir.Span{Start: start, End: end}, Bindings: b.toMap()})
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ContextHolds reports whether c holds around in.Target. The returned
// bindings extend in.Bindings with anything the context captured.
func ContextHolds(ctx context.Context, in Input, c ir.Context) (Bindings, bool, error) {
	m := newMachine(ctx, in)
	b, ok, err := m.context(c, m.initial())
	if err != nil || !ok {
		return nil, false, err
	}
	return b.toMap(), true, nil
}

// GroupHolds reports whether every context of the conjunction g holds.
// Captures flow from each context into the next.
func GroupHolds(ctx context.Context, in Input, g ir.ContextGroup) (Bindings, bool, error) {
	m := newMachine(ctx, in)
	b := m.initial()
	for _, c := range g {
		next, ok, err := m.context(c, b)
		if err != nil || !ok {
			return nil, false, err
		}
		b = next
	}
	return b.toMap(), true, nil
}

func (m *machine) context(c ir.Context, b *bindList) (*bindList, bool, error) {
	if c.Floating {
		for s := 0; s <= len(m.in.Word); s++ {
			var (
				got *bindList
				ok  bool
			)
			err := m.explore(c.Left, s, b, func(_ int, nb *bindList) bool {
				got, ok = nb, true
				return true
			})
			if err != nil {
				return nil, false, err
			}
			if ok {
				return got, true, nil
			}
		}
		return nil, false, nil
	}

	anchor := m.in.Target
	var (
		found *bindList
		ok    bool
		inner error
	)
	defer func() { m.side = sideAny }()
	// Left must end exactly at the target start; try the closest start first.
	for s := anchor.Start; s >= 0 && !ok; s-- {
		m.side = sideLeft
		err := m.explore(c.Left, s, b, func(end int, lb *bindList) bool {
			if end != anchor.Start {
				return false
			}
			m.side = sideRight
			inner = m.explore(c.Right, anchor.End, lb, func(_ int, rb *bindList) bool {
				found, ok = rb, true
				return true
			})
			m.side = sideLeft
			return ok || inner != nil
		})
		if err == nil {
			err = inner
		}
		if err != nil {
			return nil, false, err
		}
	}
	return found, ok, nil
}
