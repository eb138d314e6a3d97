package match

import (
	"context"
	"slices"

	"github.com/roach88/sce/internal/ir"
)

// bindList is a persistent list of captures. Frames share tails, so a
// choice point never copies the captures made before it.
type bindList struct {
	tag  string
	b    Binding
	next *bindList
}

func (l *bindList) lookup(tag string) (Binding, bool) {
	for n := l; n != nil; n = n.next {
		if n.tag == tag {
			return n.b, true
		}
	}
	return Binding{}, false
}

func (l *bindList) with(tag string, b Binding) *bindList {
	return &bindList{tag: tag, b: b, next: l}
}

func (l *bindList) toMap() Bindings {
	out := Bindings{}
	for n := l; n != nil; n = n.next {
		if _, ok := out[n.tag]; !ok {
			out[n.tag] = n.b
		}
	}
	return out
}

// work is one pending element in a continuation. Repeat items also carry
// how many iterations are done and where the current one started.
type work struct {
	el    *ir.Element
	count int
	mark  int
	next  *work
}

func push(p ir.Pattern, next *work) *work {
	for i := len(p) - 1; i >= 0; i-- {
		next = &work{el: &p[i], mark: -1, next: next}
	}
	return next
}

// frame is a choice point: a continuation to resume at a position.
type frame struct {
	cont  *work
	pos   int
	binds *bindList
}

// side restricts where a word boundary may match. Inside the left part of
// an anchored context '#' is the word start only; inside the right part it
// is the word end only. Elsewhere it is either.
type side uint8

const (
	sideAny side = iota
	sideLeft
	sideRight
)

type machine struct {
	ctx   context.Context
	in    Input
	steps int
	limit int
	side  side
}

func newMachine(ctx context.Context, in Input) *machine {
	limit := in.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}
	return &machine{ctx: ctx, in: in, limit: limit}
}

// initial turns Input.Bindings into a list. Tags are sorted so the list
// shape does not depend on map order.
func (m *machine) initial() *bindList {
	tags := make([]string, 0, len(m.in.Bindings))
	for tag := range m.in.Bindings {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	var l *bindList
	for _, tag := range tags {
		l = l.with(tag, m.in.Bindings[tag])
	}
	return l
}

// explore runs every path of p from start, calling accept for each
// complete match in exploration order. It stops early when accept returns
// true.
func (m *machine) explore(p ir.Pattern, start int, binds *bindList, accept func(end int, b *bindList) bool) error {
	stack := []frame{{cont: push(p, nil), pos: start, binds: binds}}
	word := m.in.Word

	for len(stack) > 0 {
		m.steps++
		if m.steps > m.limit {
			return &BudgetError{Steps: m.limit}
		}
		if m.steps%pollInterval == 0 {
			if err := m.ctx.Err(); err != nil {
				return err
			}
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.cont == nil {
			if accept(f.pos, f.binds) {
				return nil
			}
			continue
		}

		w := f.cont
		el := w.el
		rest := w.next
		pos := f.pos

		switch el.Kind {
		case ir.ElemSymbol:
			if pos < len(word) && word[pos] == el.Symbol {
				stack = append(stack, frame{rest, pos + 1, f.binds})
			}

		case ir.ElemWildcard:
			if pos < len(word) {
				stack = append(stack, frame{rest, pos + 1, f.binds})
			}

		case ir.ElemBoundary:
			if m.boundaryAt(pos) {
				stack = append(stack, frame{rest, pos, f.binds})
			}

		case ir.ElemDitto:
			if pos > 0 && pos < len(word) && word[pos] == word[pos-1] {
				stack = append(stack, frame{rest, pos + 1, f.binds})
			}

		case ir.ElemTargetCopy, ir.ElemTargetReversed:
			target := word[m.in.Target.Start:m.in.Target.End]
			if end, ok := matchSequence(word, pos, target, el.Kind == ir.ElemTargetReversed); ok {
				stack = append(stack, frame{rest, end, f.binds})
			}

		case ir.ElemCategory:
			stack = m.category(stack, el.Category, rest, pos, f.binds)

		case ir.ElemGap:
			// Pushed so that the preferred extent is popped first.
			if el.Lazy {
				for end := len(word); end >= pos; end-- {
					stack = append(stack, frame{rest, end, f.binds})
				}
			} else {
				for end := pos; end <= len(word); end++ {
					stack = append(stack, frame{rest, end, f.binds})
				}
			}

		case ir.ElemOptional:
			skip := frame{rest, pos, f.binds}
			take := frame{push(el.Sub, rest), pos, f.binds}
			if el.Lazy {
				stack = append(stack, take, skip)
			} else {
				stack = append(stack, skip, take)
			}

		case ir.ElemRepeat:
			var alts []frame
			zeroWidth := w.count > 0 && w.mark == pos
			if w.count >= el.Min {
				alts = append(alts, frame{rest, pos, f.binds})
			}
			if (el.Max == ir.Unbounded || w.count < el.Max) && !(zeroWidth && w.count >= el.Min) {
				again := &work{el: el, count: w.count + 1, mark: pos, next: rest}
				iter := frame{push(el.Sub, again), pos, f.binds}
				if el.Lazy {
					alts = append([]frame{iter}, alts...)
				} else {
					alts = append(alts, iter)
				}
			}
			// alts is in reverse preference order.
			stack = append(stack, alts...)
		}
	}
	return nil
}

func (m *machine) boundaryAt(pos int) bool {
	switch m.side {
	case sideLeft:
		return pos == 0
	case sideRight:
		return pos == len(m.in.Word)
	default:
		return pos == 0 || pos == len(m.in.Word)
	}
}

// category pushes one frame per member that matches at pos. A bound tag
// restricts the choice to the captured member index. A boundary
// alternative is explored after the members.
func (m *machine) category(stack []frame, ref *ir.CategoryRef, rest *work, pos int, binds *bindList) []frame {
	if ref == nil || ref.Index < 0 || ref.Index >= len(m.in.Arena) {
		return stack
	}
	members := m.in.Arena[ref.Index].Members

	if ref.Boundary && m.boundaryAt(pos) {
		stack = append(stack, frame{rest, pos, binds})
	}

	if ref.Tag != "" {
		if b, bound := binds.lookup(ref.Tag); bound {
			if b.Member >= len(members) {
				return stack
			}
			if end, ok := matchSequence(m.in.Word, pos, members[b.Member], false); ok {
				stack = append(stack, frame{rest, end, binds})
			}
			return stack
		}
	}

	// Reverse order so the first member is explored first.
	for i := len(members) - 1; i >= 0; i-- {
		end, ok := matchSequence(m.in.Word, pos, members[i], false)
		if !ok {
			continue
		}
		nb := binds
		if ref.Tag != "" {
			nb = binds.with(ref.Tag, Binding{Category: ref.Index, Member: i})
		}
		stack = append(stack, frame{rest, end, nb})
	}
	return stack
}

// matchSequence reports whether seq (optionally reversed) occurs in word at
// pos, and where it ends.
func matchSequence(word ir.Word, pos int, seq ir.Word, reversed bool) (int, bool) {
	if pos+len(seq) > len(word) {
		return 0, false
	}
	for i := range seq {
		s := seq[i]
		if reversed {
			s = seq[len(seq)-1-i]
		}
		if word[pos+i] != s {
			return 0, false
		}
	}
	return pos + len(seq), true
}
