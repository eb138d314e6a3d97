package engine

import (
	"context"
	"fmt"

	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/match"
)

// ruleState is the position of one pass in the application state machine.
//
//	Scanning → Matching → ExceptionCheck → Apply → Scanning
//	                 ↓            ↓          ↓
//	              Advance       Skip   ←  (unbuildable)
//
// Advance moves the cursor one position when nothing matched. Skip moves it
// past the rejected target so no site overlapping it is tried. Both return
// to Scanning, which reaches Done once the cursor leaves the word.
type ruleState uint8

const (
	stateScanning ruleState = iota
	stateMatching
	stateExceptionCheck
	stateApply
	stateSkip
	stateAdvance
	stateDone
)

var ruleStateNames = [...]string{
	stateScanning:       "scanning",
	stateMatching:       "matching",
	stateExceptionCheck: "exception_check",
	stateApply:          "apply",
	stateSkip:           "skip",
	stateAdvance:        "advance",
	stateDone:           "done",
}

func (s ruleState) String() string {
	if int(s) < len(ruleStateNames) {
		return ruleStateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ruleRun is the outcome of one rule over one word.
type ruleRun struct {
	word      ir.Word
	sites     []ir.Span
	passes    int
	truncated bool
	diags     []ir.Diagnostic
}

// applyRule runs rule over word. Persistent rules repeat passes while a
// pass rewrites at least one site, up to the pass bound. A pass that
// reproduces an earlier form means the bound will be hit; the form it would
// stop at follows from the cycle period, and the run is truncated.
func (e *Engine) applyRule(ctx context.Context, rule *ir.Rule, word ir.Word) (ruleRun, error) {
	run := ruleRun{word: word}
	diags := newDiagSet()
	persistent := rule.Flags.Has(ir.FlagPersistent)

	limiter := NewPassLimiter(e.maxPasses)
	cycles := NewCycleDetector()
	cycles.Record(word)

	for {
		if err := limiter.Check(rule.ID); err != nil {
			e.truncate(&run, diags, rule, err, word)
			break
		}

		next, sites, err := e.pass(ctx, rule, run.word, diags)
		if err != nil {
			return ruleRun{}, err
		}
		run.passes++
		run.sites = append(run.sites, sites...)
		run.word = next

		if !persistent || len(sites) == 0 {
			break
		}
		if settled, ok := cycles.Settle(next, limiter.MaxPasses()); ok {
			passes := run.passes
			run.word = settled
			run.passes = limiter.MaxPasses()
			e.truncate(&run, diags, rule, &PassesExceededError{
				RuleID: rule.ID,
				Passes: limiter.MaxPasses(),
				Limit:  limiter.MaxPasses(),
			}, word)
			diags.add(rule, ir.RuleLevel, ir.DiagCycle,
				fmt.Sprintf("pass %d reproduced the earlier form %q", passes, next.String()))
			e.logger.Warn("persistent rule cycled",
				"rule", rule.ID,
				"line", rule.Line,
				"passes", passes,
				"form", next.String(),
				"settled", settled.String())
			break
		}
		cycles.Record(next)
	}

	run.diags = diags.list
	return run, nil
}

func (e *Engine) truncate(run *ruleRun, diags *diagSet, rule *ir.Rule, err error, word ir.Word) {
	run.truncated = true
	diags.add(rule, ir.RuleLevel, ir.DiagTruncated, err.Error())
	e.logger.Warn("persistent rule truncated",
		"rule", rule.ID,
		"line", rule.Line,
		"passes", run.passes,
		"word", word.String())
}

// pass makes one scan of rule over word and returns the new word plus the
// sites that were rewritten.
func (e *Engine) pass(ctx context.Context, rule *ir.Rule, word ir.Word, diags *diagSet) (ir.Word, []ir.Span, error) {
	s := &scan{
		e:         e,
		ctx:       ctx,
		rule:      rule,
		word:      word.Clone(),
		origLen:   len(word),
		rtl:       rule.Flags.Has(ir.FlagRightToLeft),
		noEmptyAt: -1,
		allowed:   make([]map[int]bool, len(rule.Branches)),
		diags:     diags,
	}
	if s.rtl {
		s.cursor = len(word)
		s.limit = len(word)
	}
	if err := s.selectPositions(); err != nil {
		return nil, nil, err
	}
	if err := s.run(); err != nil {
		return nil, nil, err
	}
	return s.word, s.applied, nil
}

// site is the application chosen at the cursor.
type site struct {
	branch int
	span   ir.Span
	// target holds the captures of the target alone; binds adds whatever
	// the satisfied environment captured.
	target match.Bindings
	binds  match.Bindings
}

// scan is the state of a single pass.
type scan struct {
	e    *Engine
	ctx  context.Context
	rule *ir.Rule

	word    ir.Word
	origLen int
	rtl     bool

	cursor int
	// limit bounds match ends during a right-to-left pass so a new site
	// never overlaps one already rewritten.
	limit int
	// noEmptyAt is where the previous application ended; an empty match
	// may not start there.
	noEmptyAt int

	// allowed holds, per branch, the permitted start positions in
	// pass-start coordinates. nil means every position.
	allowed []map[int]bool

	cur     site
	applied []ir.Span
	diags   *diagSet
}

func (s *scan) run() error {
	state := stateScanning
	for state != stateDone {
		switch state {
		case stateScanning:
			if s.cursor < 0 || s.cursor > len(s.word) {
				state = stateDone
				continue
			}
			if err := s.ctx.Err(); err != nil {
				return err
			}
			state = stateMatching

		case stateMatching:
			found, err := s.findSite()
			if err != nil {
				return err
			}
			if found {
				state = stateExceptionCheck
			} else {
				state = stateAdvance
			}

		case stateExceptionCheck:
			vetoed, err := s.vetoed()
			if err != nil {
				return err
			}
			if vetoed {
				state = stateSkip
			} else {
				state = stateApply
			}

		case stateApply:
			ok, err := s.apply()
			if err != nil {
				return err
			}
			if ok {
				state = stateScanning
			} else {
				state = stateSkip
			}

		case stateSkip:
			s.skip()
			state = stateScanning

		case stateAdvance:
			if s.rtl {
				s.cursor--
			} else {
				s.cursor++
			}
			state = stateScanning
		}
	}
	return nil
}

func (s *scan) input(target ir.Span, binds match.Bindings) match.Input {
	return match.Input{
		Word:     s.word,
		Arena:    s.e.rs.Categories,
		Target:   target,
		Bindings: binds,
		MaxSteps: s.e.maxSteps,
	}
}

// findSite tries the branches in order at the cursor. The first branch
// with a target extent whose environment holds wins.
func (s *scan) findSite() (bool, error) {
	for bi := range s.rule.Branches {
		b := &s.rule.Branches[bi]
		if b.Disabled || !s.positionAllowed(bi) {
			continue
		}

		cands, err := match.Candidates(s.ctx, s.input(ir.Span{}, nil), b.Target, s.cursor)
		if err != nil {
			if s.overBudget(bi, err) {
				continue
			}
			return false, err
		}

		for _, c := range cands {
			if !s.admissible(c.Span) {
				continue
			}
			binds, ok, err := s.environment(b, c)
			if err != nil {
				if s.overBudget(bi, err) {
					break
				}
				return false, err
			}
			if ok {
				s.cur = site{branch: bi, span: c.Span, target: c.Bindings, binds: binds}
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *scan) admissible(span ir.Span) bool {
	if s.rtl && span.End > s.limit {
		return false
	}
	return span.Len() > 0 || span.Start != s.noEmptyAt
}

// environment returns the captures of the first environment group that
// holds. A branch without environments applies everywhere.
func (s *scan) environment(b *ir.Branch, c match.Result) (match.Bindings, bool, error) {
	if len(b.Environments) == 0 {
		return c.Bindings, true, nil
	}
	for _, g := range b.Environments {
		binds, ok, err := match.GroupHolds(s.ctx, s.input(c.Span, c.Bindings), g)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return binds, true, nil
		}
	}
	return nil, false, nil
}

// vetoed reports whether an exception of the chosen branch holds. A veto
// skips the site for the whole rule; later branches are not consulted.
func (s *scan) vetoed() (bool, error) {
	b := &s.rule.Branches[s.cur.branch]
	for _, g := range b.Exceptions {
		_, ok, err := match.GroupHolds(s.ctx, s.input(s.cur.span, s.cur.target), g)
		if err != nil {
			if s.overBudget(s.cur.branch, err) {
				return true, nil
			}
			return false, err
		}
		if ok {
			s.e.logger.Debug("site vetoed",
				"rule", s.rule.ID,
				"branch", s.cur.branch,
				"start", s.cur.span.Start,
				"end", s.cur.span.End)
			return true, nil
		}
	}
	return false, nil
}

// apply rewrites the chosen site and moves the cursor past the inserted
// replacement. It reports false when the replacement cannot be built.
func (s *scan) apply() (bool, error) {
	span := s.cur.span
	if err := s.e.checkSpan(s.rule.ID, s.word, span); err != nil {
		return false, err
	}
	out, ok, err := s.build(span)
	if err != nil || !ok {
		return false, err
	}

	next := make(ir.Word, 0, len(s.word)-span.Len()+len(out))
	next = append(next, s.word[:span.Start]...)
	next = append(next, out...)
	next = append(next, s.word[span.End:]...)
	s.word = next
	s.applied = append(s.applied, span)

	if s.rtl {
		s.cursor = span.Start
		s.limit = span.Start
		s.noEmptyAt = span.Start
	} else {
		s.cursor = span.Start + len(out)
		s.noEmptyAt = s.cursor
	}
	return true, nil
}

// skip moves the cursor past a vetoed or unbuildable site. An empty site
// still advances by one position.
func (s *scan) skip() {
	span := s.cur.span
	if s.rtl {
		s.limit = span.Start
		s.cursor = span.Start - 1
		return
	}
	s.cursor = max(span.End, s.cursor+1)
}

// build instantiates the replacement of the chosen branch.
func (s *scan) build(span ir.Span) (ir.Word, bool, error) {
	bi := s.cur.branch
	b := &s.rule.Branches[bi]
	out := ir.Word{}

	for _, el := range b.Replacement {
		switch el.Kind {
		case ir.ElemSymbol:
			out = append(out, el.Symbol)

		case ir.ElemCategory:
			member, ok, err := s.correlate(bi, el.Category)
			if err != nil || !ok {
				return nil, false, err
			}
			out = append(out, member...)

		case ir.ElemDitto:
			switch {
			case len(out) > 0:
				out = append(out, out[len(out)-1])
			case span.Start > 0:
				out = append(out, s.word[span.Start-1])
			}

		case ir.ElemTargetCopy:
			out = append(out, s.word[span.Start:span.End]...)

		case ir.ElemTargetReversed:
			for i := span.End - 1; i >= span.Start; i-- {
				out = append(out, s.word[i])
			}

		case ir.ElemBoundary:
			return nil, false, s.e.violation(s.rule.ID, "branch %d emits a word boundary", bi)

		default:
			return nil, false, s.e.violation(s.rule.ID, "branch %d has a %s element in its replacement", bi, el.Kind)
		}
	}
	return out, true, nil
}

// correlate picks the member of a replacement category. A single-member
// category is a constant; otherwise the member index comes from the
// capture under the same tag, and both categories must be equally long.
func (s *scan) correlate(bi int, ref *ir.CategoryRef) (ir.Word, bool, error) {
	cat, ok := s.e.rs.Category(indexOf(ref))
	if !ok {
		return nil, false, s.e.violation(s.rule.ID, "branch %d references a category outside the arena", bi)
	}
	if cat.Len() == 1 {
		return cat.Members[0], true, nil
	}

	bound, ok := s.cur.binds[ref.Tag]
	if !ok {
		s.diags.add(s.rule, bi, ir.DiagUnboundCorrelation,
			fmt.Sprintf("nothing captured tag %q for replacement category %s", ref.Tag, categoryName(ref)))
		return nil, false, nil
	}
	src, _ := s.e.rs.Category(bound.Category)
	if src.Len() != cat.Len() {
		s.diags.add(s.rule, bi, ir.DiagCorrelationMismatch,
			fmt.Sprintf("category %s has %d members but the captured category has %d",
				categoryName(ref), cat.Len(), src.Len()))
		return nil, false, nil
	}
	return cat.Members[bound.Member], true, nil
}

func indexOf(ref *ir.CategoryRef) int {
	if ref == nil {
		return ir.NoCategory
	}
	return ref.Index
}

func categoryName(ref *ir.CategoryRef) string {
	if ref.Name != "" {
		return ref.Name
	}
	return "[...]"
}

// selectPositions resolves @n|m restrictions into start positions. The
// occurrences are the non-overlapping left-to-right matches of the target
// as the word stood when the pass began.
func (s *scan) selectPositions() error {
	for bi := range s.rule.Branches {
		b := &s.rule.Branches[bi]
		if b.Disabled || len(b.Positions) == 0 {
			continue
		}
		starts, err := s.occurrences(b.Target)
		if err != nil {
			if !s.overBudget(bi, err) {
				return err
			}
			starts = nil
		}

		allowed := make(map[int]bool, len(b.Positions))
		n := len(starts)
		for _, p := range b.Positions {
			i := p - 1
			if p < 0 {
				i = n + p
			}
			if i >= 0 && i < n {
				allowed[starts[i]] = true
			}
		}
		s.allowed[bi] = allowed
	}
	return nil
}

func (s *scan) occurrences(p ir.Pattern) ([]int, error) {
	var starts []int
	for pos := 0; pos <= len(s.word); {
		r, ok, err := match.Match(s.ctx, s.input(ir.Span{}, nil), p, pos)
		if err != nil {
			return nil, err
		}
		if !ok {
			pos++
			continue
		}
		starts = append(starts, pos)
		if r.Span.Len() == 0 {
			pos++
		} else {
			pos = r.Span.End
		}
	}
	return starts, nil
}

// positionAllowed maps the cursor back to pass-start coordinates. Rewrites
// only ever happen behind the cursor, so a left-to-right pass shifts by the
// net length change and a right-to-left pass not at all.
func (s *scan) positionAllowed(bi int) bool {
	allowed := s.allowed[bi]
	if allowed == nil {
		return true
	}
	orig := s.cursor
	if !s.rtl {
		orig -= len(s.word) - s.origLen
	}
	return allowed[orig]
}

// overBudget records a MatchBudget diagnostic if err is a budget overrun.
func (s *scan) overBudget(bi int, err error) bool {
	if !match.IsBudgetExceeded(err) {
		return false
	}
	s.diags.add(s.rule, bi, ir.DiagMatchBudget, err.Error())
	s.e.logger.Warn("match budget exceeded",
		"rule", s.rule.ID,
		"branch", bi,
		"cursor", s.cursor)
	return true
}

type diagKey struct {
	code   ir.DiagnosticCode
	branch int
}

// diagSet collects runtime diagnostics for one rule run, once per code and
// branch.
type diagSet struct {
	seen map[diagKey]bool
	list []ir.Diagnostic
}

func newDiagSet() *diagSet {
	return &diagSet{seen: make(map[diagKey]bool)}
}

func (d *diagSet) add(rule *ir.Rule, branch int, code ir.DiagnosticCode, msg string) {
	k := diagKey{code: code, branch: branch}
	if d.seen[k] {
		return
	}
	d.seen[k] = true
	d.list = append(d.list, ir.Diagnostic{
		Code:    code,
		RuleID:  rule.ID,
		Branch:  branch,
		Line:    rule.Line,
		Message: msg,
	})
}
