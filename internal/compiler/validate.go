package compiler

import (
	"fmt"

	"github.com/roach88/sce/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Diagnostic-backed errors (E101-E109)
	ErrUndefinedCategory     = "E101" // reference to an undefined category
	ErrCorrelationMismatch   = "E102" // correlated categories differ in length
	ErrUnboundCorrelation    = "E103" // replacement category has nothing to correlate with
	ErrReplacementCount      = "E104" // targets and replacements do not pair up
	ErrInvalidReplacement    = "E105" // matching-only element in a replacement
	ErrBoundaryInReplacement = "E106" // replacement emits a word boundary

	// Structural checks (E110-E119)
	ErrRuleInert        = "E110" // every branch of a rule is disabled
	ErrEmptyCategory    = "E111" // target references a category with no members
	ErrInvalidPosition  = "E112" // position restriction of zero
	ErrUnknownCategory  = "E113" // category index outside the arena
	ErrEmptyReplacement = "E114" // rule neither matches nor emits anything
)

var diagnosticCodes = map[ir.DiagnosticCode]string{
	ir.DiagUndefinedCategory:     ErrUndefinedCategory,
	ir.DiagCorrelationMismatch:   ErrCorrelationMismatch,
	ir.DiagUnboundCorrelation:    ErrUnboundCorrelation,
	ir.DiagReplacementCount:      ErrReplacementCount,
	ir.DiagInvalidReplacement:    ErrInvalidReplacement,
	ir.DiagBoundaryInReplacement: ErrBoundaryInReplacement,
}

// ValidationError represents a ruleset validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled IR and reports every finding (does not
// fail-fast). Supports Ruleset and Rule values.
func Validate(v any) []ValidationError {
	switch x := v.(type) {
	case *ir.Ruleset:
		return validateRuleset(x)
	case ir.Ruleset:
		return validateRuleset(&x)
	case *ir.Rule:
		return validateRule(x, nil)
	case ir.Rule:
		return validateRule(&x, nil)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateRuleset(rs *ir.Ruleset) []ValidationError {
	var errs []ValidationError
	for _, d := range rs.CategoryDiagnostics {
		errs = append(errs, fromDiagnostic("category", d))
	}
	for i := range rs.Rules {
		errs = append(errs, validateRule(&rs.Rules[i], rs)...)
	}
	return errs
}

// validateRule checks one rule. rs may be nil, in which case checks that
// need the category arena are skipped.
func validateRule(rule *ir.Rule, rs *ir.Ruleset) []ValidationError {
	var errs []ValidationError
	prefix := fmt.Sprintf("rules[%d]", rule.ID)

	for _, d := range rule.Diagnostics {
		field := prefix
		if d.Branch != ir.RuleLevel {
			field = fmt.Sprintf("%s.branches[%d]", prefix, d.Branch)
		}
		errs = append(errs, fromDiagnostic(field, d))
	}

	// E110: a rule that can never apply
	if len(rule.Branches) > 0 && allDisabled(rule.Branches) {
		errs = append(errs, ValidationError{
			Field:   prefix,
			Message: "every branch is disabled; the rule never applies",
			Code:    ErrRuleInert,
			Line:    rule.Line,
		})
	}

	for bi, b := range rule.Branches {
		field := fmt.Sprintf("%s.branches[%d]", prefix, bi)

		// E112: positions are 1-based
		for _, pos := range b.Positions {
			if pos == 0 {
				errs = append(errs, ValidationError{
					Field:   field + ".positions",
					Message: "position 0 never matches; positions are 1-based",
					Code:    ErrInvalidPosition,
					Line:    rule.Line,
				})
			}
		}

		// E114: empty target and empty replacement
		if len(b.Target) == 0 && len(b.Replacement) == 0 && !b.Disabled {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "branch has an empty target and an empty replacement",
				Code:    ErrEmptyReplacement,
				Line:    rule.Line,
			})
		}

		if rs == nil || b.Disabled {
			continue
		}
		for _, ref := range categoryRefs(b.Target) {
			cat, ok := rs.Category(ref.Index)
			// E113: dangling arena index
			if !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".target",
					Message: fmt.Sprintf("category index %d is outside the arena", ref.Index),
					Code:    ErrUnknownCategory,
					Line:    rule.Line,
				})
				continue
			}
			// E111: a target that can never match
			if cat.Len() == 0 && !ref.Boundary {
				errs = append(errs, ValidationError{
					Field:   field + ".target",
					Message: fmt.Sprintf("category %s has no members and never matches", displayRef(ref)),
					Code:    ErrEmptyCategory,
					Line:    rule.Line,
				})
			}
		}
	}
	return errs
}

func fromDiagnostic(field string, d ir.Diagnostic) ValidationError {
	code, ok := diagnosticCodes[d.Code]
	if !ok {
		code = ErrUnsupportedIRType
	}
	return ValidationError{Field: field, Message: d.Message, Code: code, Line: d.Line}
}

func allDisabled(branches []ir.Branch) bool {
	for _, b := range branches {
		if !b.Disabled {
			return false
		}
	}
	return true
}

// categoryRefs returns the category references of a pattern, depth first.
func categoryRefs(p ir.Pattern) []*ir.CategoryRef {
	var out []*ir.CategoryRef
	for _, el := range p {
		if el.Kind == ir.ElemCategory {
			out = append(out, el.Category)
		}
		out = append(out, categoryRefs(el.Sub)...)
	}
	return out
}
