package compiler

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/roach88/sce/internal/ir"
)

// Syntax tree produced by the parser. Lowering to IR happens statement by
// statement in lower.go, because category edits change what later rules see.

type elemKind int

const (
	elemLiteral elemKind = iota
	elemSet
	elemOptional
	elemWildcard
	elemGap
	elemBoundary
	elemDitto
	elemTargetCopy
	elemTargetReversed
	elemSlot
)

// litPiece is one Text token, or one escaped character taken verbatim.
type litPiece struct {
	text    string
	escaped bool
}

type memberNode struct {
	lit      []litPiece
	ref      string // set for "[Name]" members
	boundary bool   // "#" inside a bracket set
	pos      lexer.Position
}

type setNode struct {
	members []memberNode
	tag     string
	// named is set for the "[Name]" form: a reference to a named
	// category rather than an inline list.
	named bool
}

type repeatNode struct {
	min, max int
	lazy     bool
}

type elemNode struct {
	kind   elemKind
	lit    litPiece
	set    *setNode
	sub    []elemNode
	lazy   bool
	repeat *repeatNode
	pos    lexer.Position
}

type patternNode struct {
	elems []elemNode
	pos   lexer.Position
}

// groupNode is a conjunction of contexts.
type groupNode []patternNode

type predicateNode struct {
	replacements []patternNode
	envs         []groupNode
	exceptions   []groupNode
	pos          lexer.Position
}

type ruleForm int

const (
	formChange ruleForm = iota
	formInsert
	formDelete
)

type ruleNode struct {
	flags         ir.Flags
	optionalClass string
	form          ruleForm
	targets       []patternNode
	positions     []int
	predicates    []predicateNode
}

type catEditNode struct {
	name    string
	op      string
	members []memberNode
}

type stmtNode struct {
	cat    *catEditNode
	rule   *ruleNode
	pos    lexer.Position
	source string
}

type parser struct {
	src  string
	toks []token
	i    int
}

// parse turns the whole source into statements. It stops at the first
// syntax error.
func parse(filename, src string) ([]stmtNode, error) {
	toks, err := tokenize(filename, src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}

	var stmts []stmtNode
	for {
		for p.peek().kind == tokNewline {
			p.next()
		}
		if p.peek().kind == tokEOF {
			return stmts, nil
		}
		start := p.peek()
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if !p.atEnd() {
			return nil, p.unexpected()
		}
		last := p.toks[p.i-1]
		stmt.pos = start.pos
		stmt.source = src[start.pos.Offset:last.end()]
		stmts = append(stmts, stmt)
	}
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) atEnd() bool {
	k := p.peek().kind
	return k == tokNewline || k == tokEOF
}

func (p *parser) isPunct(v string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.val == v
}

func (p *parser) accept(v string) bool {
	if p.isPunct(v) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(v string) (token, error) {
	if !p.isPunct(v) {
		return token{}, p.errorf(p.peek(), "expected %q, found %s", v, describe(p.peek()))
	}
	return p.next(), nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &CompileError{Pos: t.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected() error {
	return p.errorf(p.peek(), "unexpected %s", describe(p.peek()))
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "end of line"
	default:
		return strconv.Quote(t.val)
	}
}

func (p *parser) parseStatement() (stmtNode, error) {
	if p.peek().kind == tokText {
		if op := p.peekAt(1); op.kind == tokPunct && (op.val == "=" || op.val == "+=" || op.val == "-=") {
			cat, err := p.parseCategory()
			return stmtNode{cat: cat}, err
		}
	}
	rule, err := p.parseRule()
	return stmtNode{rule: rule}, err
}

func (p *parser) parseCategory() (*catEditNode, error) {
	name := p.next().val
	op := p.next().val
	cat := &catEditNode{name: name, op: op}
	if p.atEnd() {
		return cat, nil
	}
	for {
		m, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		cat.members = append(cat.members, m)
		if !p.accept(",") {
			return cat, nil
		}
	}
}

// parseMember reads a literal member or a "[Name]" splice.
func (p *parser) parseMember() (memberNode, error) {
	start := p.peek()
	if p.accept("[") {
		name := p.peek()
		if name.kind != tokText {
			return memberNode{}, p.errorf(name, "expected category name, found %s", describe(name))
		}
		p.next()
		if _, err := p.expect("]"); err != nil {
			return memberNode{}, err
		}
		return memberNode{ref: name.val, pos: start.pos}, nil
	}

	m := memberNode{pos: start.pos}
	for {
		t := p.peek()
		switch t.kind {
		case tokText:
			m.lit = append(m.lit, litPiece{text: t.val})
		case tokEscape:
			m.lit = append(m.lit, litPiece{text: t.val[1:], escaped: true})
		default:
			if len(m.lit) == 0 {
				return memberNode{}, p.errorf(t, "expected category member, found %s", describe(t))
			}
			return m, nil
		}
		p.next()
	}
}

func (p *parser) parseRule() (*ruleNode, error) {
	rule := &ruleNode{}
	if err := p.parseFlags(rule); err != nil {
		return nil, err
	}
	if p.atEnd() {
		return nil, p.errorf(p.peek(), "expected rule, found %s", describe(p.peek()))
	}

	switch {
	case p.isPunct("+"):
		pos := p.next().pos
		rule.form = formInsert
		repls, err := p.parsePatternList()
		if err != nil {
			return nil, err
		}
		pred := predicateNode{replacements: repls, pos: pos}
		if err := p.parseConditions(&pred); err != nil {
			return nil, err
		}
		rule.predicates = append(rule.predicates, pred)
		return rule, nil

	case p.isPunct("-"):
		pos := p.next().pos
		rule.form = formDelete
		if err := p.parseTargets(rule); err != nil {
			return nil, err
		}
		pred := predicateNode{pos: pos}
		if err := p.parseConditions(&pred); err != nil {
			return nil, err
		}
		rule.predicates = append(rule.predicates, pred)
		return rule, nil
	}

	if err := p.parseTargets(rule); err != nil {
		return nil, err
	}
	for p.isPunct(">") {
		pos := p.next().pos
		repls, err := p.parsePatternList()
		if err != nil {
			return nil, err
		}
		pred := predicateNode{replacements: repls, pos: pos}
		if err := p.parseConditions(&pred); err != nil {
			return nil, err
		}
		rule.predicates = append(rule.predicates, pred)
	}
	if len(rule.predicates) == 0 {
		return nil, p.errorf(p.peek(), "expected \">\", found %s", describe(p.peek()))
	}
	return rule, nil
}

func (p *parser) parseFlags(rule *ruleNode) error {
	for p.isPunct("@") && p.peekAt(1).kind == tokText {
		p.next()
		name := p.next()
		switch name.val {
		case "persist":
			rule.flags |= ir.FlagPersistent
		case "rtl":
			rule.flags |= ir.FlagRightToLeft
		case "ltr":
			rule.flags &^= ir.FlagRightToLeft
		case "optional":
			rule.flags |= ir.FlagOptional
			rule.optionalClass = DefaultOptionalClass
			if p.accept("=") {
				class := p.peek()
				if class.kind != tokText {
					return p.errorf(class, "expected optional class name, found %s", describe(class))
				}
				rule.optionalClass = p.next().val
			}
		default:
			return p.errorf(name, "unknown flag %q", name.val)
		}
	}
	return nil
}

func (p *parser) parseTargets(rule *ruleNode) error {
	targets, err := p.parsePatternList()
	if err != nil {
		return err
	}
	rule.targets = targets
	if !p.accept("@") {
		return nil
	}
	for {
		n, err := p.parseInt(true)
		if err != nil {
			return err
		}
		rule.positions = append(rule.positions, n)
		if !p.accept("|") {
			return nil
		}
	}
}

// parseInt reads a decimal integer. Zero is rejected when nonZero is set.
func (p *parser) parseInt(nonZero bool) (int, error) {
	neg := p.accept("-")
	t := p.peek()
	if t.kind != tokText {
		return 0, p.errorf(t, "expected number, found %s", describe(t))
	}
	n, err := strconv.Atoi(t.val)
	if err != nil || n < 0 {
		return 0, p.errorf(t, "invalid number %q", t.val)
	}
	if nonZero && n == 0 {
		return 0, p.errorf(t, "positions are 1-based, got 0")
	}
	p.next()
	if neg {
		n = -n
	}
	return n, nil
}

func (p *parser) parseConditions(pred *predicateNode) error {
	for {
		switch {
		case p.accept("/"):
			groups, err := p.parseGroups()
			if err != nil {
				return err
			}
			pred.envs = append(pred.envs, groups...)
		case p.accept("!"):
			groups, err := p.parseGroups()
			if err != nil {
				return err
			}
			pred.exceptions = append(pred.exceptions, groups...)
		default:
			return nil
		}
	}
}

func (p *parser) parseGroups() ([]groupNode, error) {
	var groups []groupNode
	for {
		var group groupNode
		for {
			ctx, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			group = append(group, ctx)
			if !p.accept("&") {
				break
			}
		}
		groups = append(groups, group)
		if !p.accept(",") {
			return groups, nil
		}
	}
}

func (p *parser) parsePatternList() ([]patternNode, error) {
	var list []patternNode
	for {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		list = append(list, pat)
		if !p.accept(",") {
			return list, nil
		}
	}
}

func (p *parser) parsePattern() (patternNode, error) {
	pat := patternNode{pos: p.peek().pos}
	for {
		t := p.peek()
		if t.kind == tokPunct && t.val == "{" {
			if len(pat.elems) == 0 {
				return patternNode{}, p.errorf(t, "repeat without an element")
			}
			last := &pat.elems[len(pat.elems)-1]
			if last.repeat != nil {
				return patternNode{}, p.errorf(t, "element is already repeated")
			}
			rep, err := p.parseRepeat()
			if err != nil {
				return patternNode{}, err
			}
			last.repeat = rep
			continue
		}
		if !startsElement(t) {
			return pat, nil
		}
		el, err := p.parseElement()
		if err != nil {
			return patternNode{}, err
		}
		pat.elems = append(pat.elems, el)
	}
}

func startsElement(t token) bool {
	switch t.kind {
	case tokText, tokEscape:
		return true
	case tokPunct:
		switch t.val {
		case "[", "(", "*", "*?", "**", "**?", "#", `"`, "%", "<", "_":
			return true
		}
	}
	return false
}

func (p *parser) parseElement() (elemNode, error) {
	t := p.next()
	el := elemNode{pos: t.pos}
	switch {
	case t.kind == tokText:
		el.kind = elemLiteral
		el.lit = litPiece{text: t.val}
	case t.kind == tokEscape:
		el.kind = elemLiteral
		el.lit = litPiece{text: t.val[1:], escaped: true}
	case t.val == "[":
		set, err := p.parseSet()
		if err != nil {
			return elemNode{}, err
		}
		el.kind = elemSet
		el.set = set
	case t.val == "(":
		sub, err := p.parsePattern()
		if err != nil {
			return elemNode{}, err
		}
		if _, err := p.expect(")"); err != nil {
			return elemNode{}, err
		}
		el.kind = elemOptional
		el.sub = sub.elems
		el.lazy = p.accept("?")
	case t.val == "*" || t.val == "*?":
		el.kind = elemWildcard
	case t.val == "**":
		el.kind = elemGap
	case t.val == "**?":
		el.kind = elemGap
		el.lazy = true
	case t.val == "#":
		el.kind = elemBoundary
	case t.val == `"`:
		el.kind = elemDitto
	case t.val == "%":
		el.kind = elemTargetCopy
	case t.val == "<":
		el.kind = elemTargetReversed
	case t.val == "_":
		el.kind = elemSlot
	default:
		return elemNode{}, p.errorf(t, "unexpected %s", describe(t))
	}
	return el, nil
}

// parseSet reads the body of a bracket after "[".
func (p *parser) parseSet() (*setNode, error) {
	set := &setNode{}
	if p.accept("]") {
		return set, nil
	}
	for {
		if t := p.peek(); p.accept("#") {
			set.members = append(set.members, memberNode{boundary: true, pos: t.pos})
		} else {
			m, err := p.parseMember()
			if err != nil {
				return nil, err
			}
			set.members = append(set.members, m)
		}
		if !p.accept(",") {
			break
		}
	}
	if len(set.members) == 1 {
		m := set.members[0]
		if len(m.lit) == 1 && !m.lit[0].escaped {
			set.members[0] = memberNode{ref: m.lit[0].text, pos: m.pos}
			set.named = true
		}
	}
	if p.accept("=") {
		tag := p.peek()
		if tag.kind != tokText {
			return nil, p.errorf(tag, "expected correlation tag, found %s", describe(tag))
		}
		set.tag = p.next().val
	}
	if _, err := p.expect("]"); err != nil {
		return nil, err
	}
	return set, nil
}

// parseRepeat reads "{n}", "{n,m}", "{*}", "{**}", "{+}" and their lazy
// forms.
func (p *parser) parseRepeat() (*repeatNode, error) {
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	rep := &repeatNode{}
	t := p.peek()
	switch {
	case t.kind == tokText:
		n, err := p.parseInt(false)
		if err != nil {
			return nil, err
		}
		rep.min, rep.max = n, n
		if p.accept(",") {
			if p.accept("*") || p.accept("**") {
				rep.max = ir.Unbounded
			} else {
				hi := p.peek()
				m, err := p.parseInt(false)
				if err != nil {
					return nil, err
				}
				if m < n {
					return nil, p.errorf(hi, "repeat upper bound %d is below lower bound %d", m, n)
				}
				rep.max = m
			}
		}
	case t.kind == tokPunct && (t.val == "*" || t.val == "**"):
		p.next()
		rep.max = ir.Unbounded
	case t.kind == tokPunct && (t.val == "*?" || t.val == "**?"):
		p.next()
		rep.max = ir.Unbounded
		rep.lazy = true
	case t.kind == tokPunct && t.val == "+":
		p.next()
		rep.min, rep.max = 1, ir.Unbounded
		rep.lazy = p.accept("?")
	default:
		return nil, p.errorf(t, "invalid repeat count %s", describe(t))
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	return rep, nil
}
