package harness

import "github.com/roach88/sce/internal/ir"

// WordTrace is the evolution of one scenario word.
type WordTrace struct {
	Input  string `json:"input"`
	Output string `json:"output"`

	// Changes lists the rules that altered the word, in rule order.
	Changes []ir.ChangeRecord `json:"changes"`

	Diagnostics []ir.Diagnostic `json:"diagnostics,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expected output matched and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds one entry per scenario word, in scenario order.
	// Used for trace assertions and golden comparison.
	Trace []WordTrace `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// RulesetHash fingerprints the compiled rules.
	RulesetHash string `json:"ruleset_hash"`

	// RunID identifies the run recorded in the scenario's store.
	RunID string `json:"run_id"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []WordTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddWordTrace appends the trace of one word.
func (r *Result) AddWordTrace(w WordTrace) {
	if w.Changes == nil {
		w.Changes = []ir.ChangeRecord{}
	}
	r.Trace = append(r.Trace, w)
}

// word returns the trace of the first word with the given input.
func (r *Result) word(input string) (WordTrace, bool) {
	for _, w := range r.Trace {
		if w.Input == input {
			return w, true
		}
	}
	return WordTrace{}, false
}
