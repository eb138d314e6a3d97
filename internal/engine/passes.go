package engine

import (
	"errors"
	"fmt"
)

// PassLimiter counts the passes of one persistent rule over one word and
// enforces the maximum.
//
// Persistent rules repeat while a pass changes something. The rule
// language does not guarantee that this ends (a > b, b > a under one
// persistent rule never settles), so the engine bounds it.
//
// Distinction from cycle detection:
//   - Cycle detection: a pass reproduced an earlier form, so the outcome
//     at the bound is known early
//   - Pass limit: catches growth that never repeats (a > aa)
//
// Both end the rule truncated.
type PassLimiter struct {
	maxPasses int
	current   int
}

// NewPassLimiter creates a limiter with the given bound.
func NewPassLimiter(maxPasses int) *PassLimiter {
	return &PassLimiter{maxPasses: maxPasses}
}

// Check counts one more pass and validates it against the bound.
//
// Returns PassesExceededError if the pass would exceed the bound. Call it
// before running each pass.
func (q *PassLimiter) Check(ruleID int) error {
	q.current++
	if q.current > q.maxPasses {
		return &PassesExceededError{
			RuleID: ruleID,
			Passes: q.current - 1,
			Limit:  q.maxPasses,
		}
	}
	return nil
}

// Reset resets the pass counter to 0.
func (q *PassLimiter) Reset() {
	q.current = 0
}

// Current returns the number of passes counted so far.
func (q *PassLimiter) Current() int {
	return q.current
}

// MaxPasses returns the bound.
func (q *PassLimiter) MaxPasses() int {
	return q.maxPasses
}

// PassesExceededError is returned when a persistent rule would run more
// passes than allowed. The engine turns it into a Truncated diagnostic.
type PassesExceededError struct {
	RuleID int
	Passes int
	Limit  int
}

// Error implements the error interface.
func (e *PassesExceededError) Error() string {
	return fmt.Sprintf("rule %d exceeded max passes: %d passes run, limit %d",
		e.RuleID, e.Passes, e.Limit)
}

// IsPassesExceededError returns true if the error is a PassesExceededError.
// Uses errors.As to handle wrapped errors.
func IsPassesExceededError(err error) bool {
	var pe *PassesExceededError
	return errors.As(err, &pe)
}
