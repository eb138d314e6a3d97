package compiler

import (
	"fmt"
	"strconv"

	"github.com/roach88/sce/internal/category"
	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/segment"
)

type role int

const (
	roleTarget role = iota
	roleReplacement
	roleContext
)

func (r role) String() string {
	switch r {
	case roleTarget:
		return "target"
	case roleReplacement:
		return "replacement"
	default:
		return "environment"
	}
}

// problem is a semantic condition found while lowering one pattern.
// Disabling problems turn off every branch that uses the pattern.
type problem struct {
	code      ir.DiagnosticCode
	message   string
	disabling bool
}

type lowerer struct {
	tbl *category.Table
	seg *segment.Segmenter
}

// lowerCategory applies a category statement to the table.
func (l *lowerer) lowerCategory(c *catEditNode, line int) []ir.Diagnostic {
	var diags []ir.Diagnostic
	words, probs := l.memberWords(c.members)
	for _, p := range probs {
		diags = append(diags, categoryDiagnostic(p.code, line, p.message))
	}

	var err error
	switch c.op {
	case "=":
		l.tbl.Define(c.name, words)
	case "+=":
		_, err = l.tbl.Add(c.name, words)
	case "-=":
		_, err = l.tbl.Remove(c.name, words)
	}
	if category.IsUndefinedCategory(err) {
		diags = append(diags, categoryDiagnostic(ir.DiagUndefinedCategory, line,
			fmt.Sprintf("cannot edit undefined category %q with %q", c.name, c.op)))
	}
	return diags
}

func categoryDiagnostic(code ir.DiagnosticCode, line int, msg string) ir.Diagnostic {
	return ir.Diagnostic{Code: code, RuleID: ir.RuleLevel, Branch: ir.RuleLevel, Line: line, Message: msg}
}

// memberWords resolves category members, splicing "[Name]" references.
func (l *lowerer) memberWords(members []memberNode) ([]ir.Word, []problem) {
	var (
		words []ir.Word
		probs []problem
	)
	for _, m := range members {
		if m.ref != "" {
			resolved, err := l.tbl.Resolve(m.ref)
			if err != nil {
				probs = append(probs, problem{
					code:      ir.DiagUndefinedCategory,
					message:   err.Error(),
					disabling: true,
				})
				continue
			}
			words = append(words, resolved...)
			continue
		}
		var w ir.Word
		for _, piece := range m.lit {
			w = append(w, l.literal(piece)...)
		}
		words = append(words, w)
	}
	return words, probs
}

func (l *lowerer) literal(piece litPiece) ir.Word {
	if piece.escaped {
		return ir.Word{ir.Symbol(piece.text)}
	}
	return l.seg.Split(piece.text)
}

// lowerRule builds the IR for one rule statement.
func (l *lowerer) lowerRule(id int, st stmtNode) (ir.Rule, error) {
	n := st.rule
	rule := ir.Rule{
		ID:            id,
		Line:          st.pos.Line,
		Source:        st.source,
		Flags:         n.flags,
		OptionalClass: n.optionalClass,
	}

	targets := n.targets
	if n.form == formInsert {
		targets = make([]patternNode, len(n.predicates[0].replacements))
	}

	loweredTargets := make([]loweredPattern, len(targets))
	for i, t := range targets {
		lp, err := l.lowerPattern(t.elems, roleTarget)
		if err != nil {
			return ir.Rule{}, err
		}
		loweredTargets[i] = lp
	}

	addDiag := func(branch int, code ir.DiagnosticCode, msg string) {
		rule.Diagnostics = append(rule.Diagnostics, ir.Diagnostic{
			Code:    code,
			RuleID:  id,
			Branch:  branch,
			Line:    rule.Line,
			Message: msg,
		})
	}

	for _, pred := range n.predicates {
		repls := pred.replacements
		if n.form == formDelete {
			repls = []patternNode{{}}
		}
		loweredRepls := make([]loweredPattern, len(repls))
		for i, r := range repls {
			lp, err := l.lowerPattern(r.elems, roleReplacement)
			if err != nil {
				return ir.Rule{}, err
			}
			loweredRepls[i] = lp
		}
		envs, envProbs, err := l.lowerGroups(pred.envs)
		if err != nil {
			return ir.Rule{}, err
		}
		excs, excProbs, err := l.lowerGroups(pred.exceptions)
		if err != nil {
			return ir.Rule{}, err
		}

		if len(loweredRepls) > 1 && len(loweredRepls) > len(loweredTargets) {
			addDiag(ir.RuleLevel, ir.DiagReplacementCount, fmt.Sprintf(
				"%d replacements for %d targets; extra replacements ignored",
				len(loweredRepls), len(loweredTargets)))
		}

		for ti, target := range loweredTargets {
			branchIdx := len(rule.Branches)
			branch := ir.Branch{
				Target:       target.pattern,
				Environments: envs,
				Exceptions:   excs,
				Positions:    n.positions,
			}

			var repl loweredPattern
			switch {
			case len(loweredRepls) == 1:
				repl = loweredRepls[0]
			case ti < len(loweredRepls):
				repl = loweredRepls[ti]
			default:
				branch.Disabled = true
				addDiag(branchIdx, ir.DiagReplacementCount, fmt.Sprintf(
					"target %d has no replacement (%d replacements for %d targets)",
					ti+1, len(loweredRepls), len(loweredTargets)))
			}
			branch.Replacement = repl.pattern

			for _, group := range [][]problem{target.problems, repl.problems, envProbs, excProbs} {
				for _, p := range group {
					if p.disabling {
						branch.Disabled = true
					}
					addDiag(branchIdx, p.code, p.message)
				}
			}
			for _, p := range checkCorrelation(l.tbl, branch) {
				addDiag(branchIdx, p.code, p.message)
			}
			rule.Branches = append(rule.Branches, branch)
		}
	}
	return rule, nil
}

type loweredPattern struct {
	pattern  ir.Pattern
	problems []problem
}

func (l *lowerer) lowerPattern(elems []elemNode, r role) (loweredPattern, error) {
	var lp loweredPattern
	pat, err := l.lowerElems(elems, r, &lp.problems)
	if err != nil {
		return loweredPattern{}, err
	}
	if r != roleContext {
		assignOrdinalTags(pat)
	}
	lp.pattern = pat
	return lp, nil
}

func (l *lowerer) lowerElems(elems []elemNode, r role, probs *[]problem) (ir.Pattern, error) {
	var out ir.Pattern
	for _, el := range elems {
		lowered, err := l.lowerElem(el, r, probs)
		if err != nil {
			return nil, err
		}
		if el.repeat != nil && len(lowered) > 0 {
			last := lowered[len(lowered)-1]
			lowered = lowered[:len(lowered)-1]
			lowered = append(lowered, l.lowerRepeat(last, el.repeat, r, probs)...)
		}
		out = append(out, lowered...)
	}
	return out, nil
}

func (l *lowerer) lowerRepeat(el ir.Element, rep *repeatNode, r role, probs *[]problem) []ir.Element {
	if r == roleReplacement {
		if rep.min != rep.max {
			*probs = append(*probs, problem{
				code:      ir.DiagInvalidReplacement,
				message:   "open-ended repeat cannot be used in a replacement",
				disabling: true,
			})
			return nil
		}
		out := make([]ir.Element, rep.min)
		for i := range out {
			out[i] = el
		}
		return out
	}
	return []ir.Element{{
		Kind: ir.ElemRepeat,
		Sub:  ir.Pattern{el},
		Min:  rep.min,
		Max:  rep.max,
		Lazy: rep.lazy,
	}}
}

func (l *lowerer) lowerElem(el elemNode, r role, probs *[]problem) ([]ir.Element, error) {
	invalid := func(what string) ([]ir.Element, error) {
		*probs = append(*probs, problem{
			code:      ir.DiagInvalidReplacement,
			message:   what + " cannot be used in a replacement",
			disabling: true,
		})
		return nil, nil
	}

	switch el.kind {
	case elemLiteral:
		word := l.literal(el.lit)
		out := make([]ir.Element, len(word))
		for i, s := range word {
			out[i] = ir.Element{Kind: ir.ElemSymbol, Symbol: s}
		}
		return out, nil

	case elemSet:
		return l.lowerSet(el.set, r, probs), nil

	case elemOptional:
		if r == roleReplacement {
			return invalid("optional element")
		}
		sub, err := l.lowerElems(el.sub, r, probs)
		if err != nil {
			return nil, err
		}
		return []ir.Element{{Kind: ir.ElemOptional, Sub: sub, Lazy: el.lazy}}, nil

	case elemWildcard:
		if r == roleReplacement {
			return invalid("wildcard")
		}
		return []ir.Element{{Kind: ir.ElemWildcard}}, nil

	case elemGap:
		if r == roleReplacement {
			return invalid("gap")
		}
		return []ir.Element{{Kind: ir.ElemGap, Lazy: el.lazy}}, nil

	case elemBoundary:
		if r == roleReplacement {
			*probs = append(*probs, problem{
				code:      ir.DiagBoundaryInReplacement,
				message:   "word boundary cannot be emitted by a replacement",
				disabling: true,
			})
			return nil, nil
		}
		return []ir.Element{{Kind: ir.ElemBoundary}}, nil

	case elemDitto:
		return []ir.Element{{Kind: ir.ElemDitto}}, nil

	case elemTargetCopy, elemTargetReversed:
		if r == roleTarget {
			return nil, &CompileError{Pos: el.pos, Message: "a target cannot refer to itself"}
		}
		kind := ir.ElemTargetCopy
		if el.kind == elemTargetReversed {
			kind = ir.ElemTargetReversed
		}
		return []ir.Element{{Kind: kind}}, nil

	case elemSlot:
		return nil, &CompileError{Pos: el.pos, Message: fmt.Sprintf("'_' is not allowed in a %s", r)}
	}
	return nil, &CompileError{Pos: el.pos, Message: "unknown element"}
}

func (l *lowerer) lowerSet(set *setNode, r role, probs *[]problem) []ir.Element {
	if set.named {
		name := set.members[0].ref
		ref := &ir.CategoryRef{Index: ir.NoCategory, Name: name, Tag: set.tag}
		if idx, ok := l.tbl.Lookup(name); ok {
			ref.Index = idx
		} else {
			*probs = append(*probs, problem{
				code:      ir.DiagUndefinedCategory,
				message:   fmt.Sprintf("undefined category %q", name),
				disabling: true,
			})
		}
		return []ir.Element{{Kind: ir.ElemCategory, Category: ref}}
	}
	if len(set.members) == 0 {
		return nil
	}

	var (
		members  []memberNode
		boundary bool
	)
	for _, m := range set.members {
		if m.boundary {
			boundary = true
			continue
		}
		members = append(members, m)
	}
	if boundary && r == roleReplacement {
		*probs = append(*probs, problem{
			code:      ir.DiagBoundaryInReplacement,
			message:   "word boundary cannot be emitted by a replacement",
			disabling: true,
		})
		return nil
	}

	words, memberProbs := l.memberWords(members)
	*probs = append(*probs, memberProbs...)
	idx := l.tbl.Anonymous(words)
	ref := &ir.CategoryRef{Index: idx, Tag: set.tag, Boundary: boundary}
	return []ir.Element{{Kind: ir.ElemCategory, Category: ref}}
}

func (l *lowerer) lowerGroups(groups []groupNode) ([]ir.ContextGroup, []problem, error) {
	var (
		out   []ir.ContextGroup
		probs []problem
	)
	for _, g := range groups {
		var group ir.ContextGroup
		for _, pat := range g {
			ctx, err := l.lowerContext(pat, &probs)
			if err != nil {
				return nil, nil, err
			}
			group = append(group, ctx)
		}
		out = append(out, group)
	}
	return out, probs, nil
}

// lowerContext splits a context pattern at its slot. A context without a
// slot floats.
func (l *lowerer) lowerContext(pat patternNode, probs *[]problem) (ir.Context, error) {
	slot := -1
	for i, el := range pat.elems {
		if el.kind == elemSlot {
			if slot >= 0 {
				return ir.Context{}, &CompileError{Pos: el.pos, Message: "more than one '_' in an environment"}
			}
			if el.repeat != nil {
				return ir.Context{}, &CompileError{Pos: el.pos, Message: "'_' cannot be repeated"}
			}
			slot = i
			continue
		}
		if nested := findSlot(el.sub); nested != nil {
			return ir.Context{}, &CompileError{Pos: nested.pos, Message: "'_' must not be nested"}
		}
	}

	if slot < 0 {
		whole, err := l.lowerElems(pat.elems, roleContext, probs)
		if err != nil {
			return ir.Context{}, err
		}
		return ir.Context{Left: whole, Floating: true}, nil
	}
	left, err := l.lowerElems(pat.elems[:slot], roleContext, probs)
	if err != nil {
		return ir.Context{}, err
	}
	right, err := l.lowerElems(pat.elems[slot+1:], roleContext, probs)
	if err != nil {
		return ir.Context{}, err
	}
	return ir.Context{Left: left, Right: right}, nil
}

func findSlot(elems []elemNode) *elemNode {
	for i := range elems {
		if elems[i].kind == elemSlot {
			return &elems[i]
		}
		if s := findSlot(elems[i].sub); s != nil {
			return s
		}
	}
	return nil
}

// assignOrdinalTags gives each untagged category an implicit tag from its
// position among the untagged categories of the pattern, depth first.
// Categories inside a repeat stay untagged: every iteration may match a
// different member.
func assignOrdinalTags(p ir.Pattern) {
	n := 0
	var walk func(ir.Pattern)
	walk = func(p ir.Pattern) {
		for i := range p {
			el := &p[i]
			if el.Kind == ir.ElemRepeat {
				continue
			}
			if el.Kind == ir.ElemCategory && el.Category.Tag == "" {
				el.Category.Tag = "#" + strconv.Itoa(n)
				n++
			}
			walk(el.Sub)
		}
	}
	walk(p)
}

// checkCorrelation reports replacement categories whose tag has no source
// of equal length. Both conditions are decided per site at apply time.
func checkCorrelation(tbl *category.Table, b ir.Branch) []problem {
	sources := map[string]int{}
	collectTags(b.Target, sources)
	for _, group := range b.Environments {
		for _, ctx := range group {
			collectTags(ctx.Left, sources)
			collectTags(ctx.Right, sources)
		}
	}

	var probs []problem
	for _, el := range b.Replacement {
		if el.Kind != ir.ElemCategory || el.Category.Index == ir.NoCategory {
			continue
		}
		dst, _ := tbl.Get(el.Category.Index)
		srcIdx, bound := sources[el.Category.Tag]
		if !bound {
			if dst.Len() > 1 {
				probs = append(probs, problem{
					code:    ir.DiagUnboundCorrelation,
					message: fmt.Sprintf("replacement category %s has no matching category to correlate with", displayRef(el.Category)),
				})
			}
			continue
		}
		if srcIdx == ir.NoCategory {
			continue
		}
		src, _ := tbl.Get(srcIdx)
		if src.Len() != dst.Len() && dst.Len() > 1 {
			probs = append(probs, problem{
				code: ir.DiagCorrelationMismatch,
				message: fmt.Sprintf("category %s has %d members but correlates with a category of %d",
					displayRef(el.Category), dst.Len(), src.Len()),
			})
		}
	}
	return probs
}

func collectTags(p ir.Pattern, into map[string]int) {
	for _, el := range p {
		if el.Kind == ir.ElemCategory && el.Category.Tag != "" {
			if _, seen := into[el.Category.Tag]; !seen {
				into[el.Category.Tag] = el.Category.Index
			}
		}
		collectTags(el.Sub, into)
	}
}

func displayRef(ref *ir.CategoryRef) string {
	if ref.Name != "" {
		return "[" + ref.Name + "]"
	}
	return "inline set"
}
