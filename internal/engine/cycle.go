package engine

import (
	"strings"

	"github.com/roach88/sce/internal/ir"
)

// CycleDetector tracks the word forms a persistent rule has produced, in
// pass order.
//
// A cycle occurs when a pass turns the word back into a form it already
// had. Example under one persistent rule:
//
//	a > b / _c, b > a / _c
//	ac → bc → ac ← CYCLE DETECTED
//
// Once a form repeats, every further pass repeats the same sequence, so the
// form the pass bound would stop at is known without running those passes.
// Settle computes it.
//
// A detector belongs to one (rule, word) application and is not safe for
// concurrent use.
type CycleDetector struct {
	history map[string]int
	forms   []ir.Word
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]int),
	}
}

// WouldCycle reports whether w has already been recorded.
func (c *CycleDetector) WouldCycle(w ir.Word) bool {
	_, ok := c.history[formKey(w)]
	return ok
}

// Record appends w as the next form. A form already seen keeps its first
// index.
func (c *CycleDetector) Record(w ir.Word) {
	k := formKey(w)
	if _, ok := c.history[k]; !ok {
		c.history[k] = len(c.forms)
	}
	c.forms = append(c.forms, w)
}

// Settle returns the form reached after bound passes, given that the form
// produced by the pass after the last recorded one is w, which was seen
// before. The recorded forms are the input followed by one form per pass.
func (c *CycleDetector) Settle(w ir.Word, bound int) (ir.Word, bool) {
	first, ok := c.history[formKey(w)]
	if !ok {
		return nil, false
	}
	period := len(c.forms) - first
	if bound < first {
		return c.forms[bound], true
	}
	return c.forms[first+(bound-first)%period], true
}

// Clear removes all history.
func (c *CycleDetector) Clear() {
	clear(c.history)
	c.forms = c.forms[:0]
}

// HistorySize returns the number of distinct forms recorded.
func (c *CycleDetector) HistorySize() int {
	return len(c.history)
}

// formKey joins symbols with a separator that cannot occur inside one, so
// ["ab"] and ["a", "b"] stay distinct.
func formKey(w ir.Word) string {
	parts := make([]string, len(w))
	for i, s := range w {
		parts[i] = string(s)
	}
	return strings.Join(parts, "\x00")
}
