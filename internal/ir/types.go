package ir

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Symbol is one opaque grapheme. Equality is exact; no normalization is
// applied once a symbol exists.
type Symbol string

// Word is an ordered sequence of symbols. The start and end boundaries are
// implicit: patterns can reference them but they are never stored.
type Word []Symbol

// String concatenates the symbols with no separator.
// Use segment.Segmenter.Join when polygraphs must stay unambiguous.
func (w Word) String() string {
	var b strings.Builder
	for _, s := range w {
		b.WriteString(string(s))
	}
	return b.String()
}

// Clone returns an independent copy of the word.
func (w Word) Clone() Word {
	if w == nil {
		return Word{}
	}
	out := make(Word, len(w))
	copy(out, w)
	return out
}

// Equal reports whether both words hold the same symbols in the same order.
func (w Word) Equal(o Word) bool {
	if len(w) != len(o) {
		return false
	}
	for i := range w {
		if w[i] != o[i] {
			return false
		}
	}
	return true
}

// Category is a named, ordered list of members. Order is significant:
// correlated substitution maps the n-th member of one category to the n-th
// member of another. A member may span more than one symbol.
//
// Anonymous inline categories have an empty Name.
type Category struct {
	Name    string `json:"name,omitempty"`
	Members []Word `json:"members"`
}

// Len returns the number of members.
func (c Category) Len() int {
	return len(c.Members)
}

// ElementKind identifies the variant held by an Element.
type ElementKind uint8

const (
	ElemSymbol ElementKind = iota + 1
	ElemCategory
	ElemWildcard
	ElemOptional
	ElemRepeat
	ElemBoundary
	ElemGap
	ElemDitto
	ElemTargetCopy
	ElemTargetReversed
)

var elementKindNames = map[ElementKind]string{
	ElemSymbol:         "symbol",
	ElemCategory:       "category",
	ElemWildcard:       "wildcard",
	ElemOptional:       "optional",
	ElemRepeat:         "repeat",
	ElemBoundary:       "boundary",
	ElemGap:            "gap",
	ElemDitto:          "ditto",
	ElemTargetCopy:     "target_copy",
	ElemTargetReversed: "target_reversed",
}

func (k ElementKind) String() string {
	if name, ok := elementKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText renders the kind by name so compiled IR stays readable.
func (k ElementKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Unbounded marks a repeat without an upper limit.
const Unbounded = -1

// NoCategory is the arena index of a reference to an undefined category.
const NoCategory = -1

// CategoryRef points into the ruleset's category arena.
type CategoryRef struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	// Tag is the correlation tag. Untagged target and replacement
	// categories get an implicit ordinal tag ("#0", "#1", ...), except
	// inside a repeat.
	Tag string `json:"tag,omitempty"`
	// Boundary adds a word boundary as an alternative to the members,
	// as in "[#,[C]]". It matches zero symbols and binds nothing.
	Boundary bool `json:"boundary,omitempty"`
}

// Element is a single pattern node.
//
// Which fields are meaningful depends on Kind:
//   - ElemSymbol: Symbol
//   - ElemCategory: Category
//   - ElemOptional: Sub, Lazy
//   - ElemRepeat: Sub, Min, Max (Unbounded), Lazy
//   - ElemGap: Lazy
type Element struct {
	Kind     ElementKind  `json:"kind"`
	Symbol   Symbol       `json:"symbol,omitempty"`
	Category *CategoryRef `json:"category,omitempty"`
	Sub      Pattern      `json:"sub,omitempty"`
	Min      int          `json:"min,omitempty"`
	Max      int          `json:"max,omitempty"`
	Lazy     bool         `json:"lazy,omitempty"`
}

// Pattern is an ordered sequence of elements.
type Pattern []Element

// Context is one anchored environment or exception pattern.
//
// Left must match ending exactly at the target's start and Right must match
// starting exactly at the target's end. A context written without the slot
// character is Floating: Left then holds the whole pattern, which may match
// anywhere in the word.
type Context struct {
	Left     Pattern `json:"left,omitempty"`
	Right    Pattern `json:"right,omitempty"`
	Floating bool    `json:"floating,omitempty"`
}

// ContextGroup is a conjunction of contexts (written with '&').
type ContextGroup []Context

// Branch is one (target, replacement) alternative of a rule.
type Branch struct {
	Target      Pattern `json:"target"`
	Replacement Pattern `json:"replacement"`

	// Environments: the branch applies if any group holds (empty = always).
	Environments []ContextGroup `json:"environments,omitempty"`

	// Exceptions: the site is vetoed if any group holds.
	Exceptions []ContextGroup `json:"exceptions,omitempty"`

	// Positions restricts the branch to the n-th target occurrences
	// (1-based, negative counts from the end). Empty means every occurrence.
	Positions []int `json:"positions,omitempty"`

	// Disabled is set when a compile-time diagnostic makes the branch
	// unusable. Disabled branches are never tried.
	Disabled bool `json:"disabled,omitempty"`
}

// Flags compose orthogonally; a rule may carry any combination.
type Flags uint8

const (
	// FlagPersistent re-scans the word until a pass changes nothing.
	FlagPersistent Flags = 1 << iota
	// FlagRightToLeft scans from the end of the word.
	FlagRightToLeft
	// FlagOptional marks the rule as belonging to an optional class.
	FlagOptional
)

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

func (f Flags) String() string {
	var parts []string
	if f.Has(FlagPersistent) {
		parts = append(parts, "persist")
	}
	if f.Has(FlagRightToLeft) {
		parts = append(parts, "rtl")
	}
	if f.Has(FlagOptional) {
		parts = append(parts, "optional")
	}
	return strings.Join(parts, "|")
}

// Rule is a compiled sound change.
type Rule struct {
	ID            int          `json:"id"`
	Line          int          `json:"line"`
	Source        string       `json:"source"`
	Flags         Flags        `json:"flags"`
	OptionalClass string       `json:"optional_class,omitempty"`
	Branches      []Branch     `json:"branches"`
	Diagnostics   []Diagnostic `json:"diagnostics,omitempty"`
}

// Ruleset is an ordered list of rules plus the category arena they
// reference. It is immutable after compilation and safe to share between
// goroutines.
type Ruleset struct {
	Rules      []Rule     `json:"rules"`
	Categories []Category `json:"categories"`

	// Names maps each category name to its final definition in the arena.
	// Rules keep the index that was current at their own line.
	Names map[string]int `json:"names"`

	// CategoryDiagnostics holds conditions raised by category edits,
	// such as extending a name that was never defined.
	CategoryDiagnostics []Diagnostic `json:"category_diagnostics,omitempty"`
}

// Category returns the arena entry at index i.
func (rs *Ruleset) Category(i int) (Category, bool) {
	if i < 0 || i >= len(rs.Categories) {
		return Category{}, false
	}
	return rs.Categories[i], true
}

// Diagnostics returns every compile-time diagnostic ordered by source line.
func (rs *Ruleset) Diagnostics() []Diagnostic {
	out := slices.Clone(rs.CategoryDiagnostics)
	for _, r := range rs.Rules {
		out = append(out, r.Diagnostics...)
	}
	slices.SortStableFunc(out, func(a, b Diagnostic) int {
		return cmp.Compare(a.Line, b.Line)
	})
	return out
}

// DiagnosticCode categorizes non-fatal conditions.
type DiagnosticCode string

const (
	DiagUndefinedCategory     DiagnosticCode = "UNDEFINED_CATEGORY"
	DiagCorrelationMismatch   DiagnosticCode = "CORRELATION_MISMATCH"
	DiagUnboundCorrelation    DiagnosticCode = "UNBOUND_CORRELATION"
	DiagReplacementCount      DiagnosticCode = "REPLACEMENT_COUNT_MISMATCH"
	DiagInvalidReplacement    DiagnosticCode = "INVALID_REPLACEMENT"
	DiagBoundaryInReplacement DiagnosticCode = "BOUNDARY_IN_REPLACEMENT"
	DiagTruncated             DiagnosticCode = "TRUNCATED"
	DiagCycle                 DiagnosticCode = "CYCLE"
	DiagMatchBudget           DiagnosticCode = "MATCH_BUDGET"
)

// RuleLevel is the Branch value of a diagnostic that concerns the whole rule.
const RuleLevel = -1

// Diagnostic records a semantic condition. It never aborts a run.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	RuleID  int            `json:"rule_id"`
	Branch  int            `json:"branch"`
	Line    int            `json:"line,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", d.Line, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Span is a half-open symbol range [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of symbols covered.
func (s Span) Len() int {
	return s.End - s.Start
}

// ChangeRecord is produced only when a rule actually altered a word.
//
// Sites lists each application in order, in the coordinates of the word as
// it was when that application happened.
type ChangeRecord struct {
	RuleID      int          `json:"rule_id"`
	Line        int          `json:"line"`
	Source      string       `json:"source"`
	Sites       []Span       `json:"sites"`
	Before      Word         `json:"before"`
	After       Word         `json:"after"`
	Passes      int          `json:"passes"`
	Truncated   bool         `json:"truncated,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}
