package engine

import (
	"fmt"

	"github.com/roach88/sce/internal/ir"
)

// violation reports an engine defect. A strict engine panics so tests fail
// loudly; otherwise it is an INVARIANT RuntimeError.
func (e *Engine) violation(ruleID int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if e.strict {
		panic(fmt.Sprintf("engine invariant violated (rule %d): %s", ruleID, msg))
	}
	return NewInvariantError(ruleID, msg)
}

// checkSpan verifies a site lies inside the word. Boundaries are never part
// of a span, so a span reaching past either end is a defect.
func (e *Engine) checkSpan(ruleID int, w ir.Word, s ir.Span) error {
	if s.Start < 0 || s.End < s.Start || s.End > len(w) {
		return e.violation(ruleID, "span [%d,%d) outside word of length %d", s.Start, s.End, len(w))
	}
	return nil
}
