package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a condition detected while applying rules.
//
// Runtime errors include:
//   - Truncation: a persistent rule hit the pass bound
//   - Cycle: a persistent rule reproduced an earlier word form
//   - Cancellation: the caller's context ended mid-run
//   - Invariant: the engine caught itself violating an internal invariant
//
// Truncation and cycles are normally reported as diagnostics; they become
// errors only through Result.Err.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RuleID identifies the rule involved, or -1.
	RuleID int

	// Word is the input word being processed, if known.
	Word string

	// Details contains additional context.
	Details map[string]string

	cause error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeTruncated indicates a persistent rule exceeded the pass bound.
	ErrCodeTruncated RuntimeErrorCode = "TRUNCATED"

	// ErrCodeCycle indicates a persistent rule revisited a word form.
	ErrCodeCycle RuntimeErrorCode = "CYCLE"

	// ErrCodeCancelled indicates the context was cancelled or timed out.
	ErrCodeCancelled RuntimeErrorCode = "CANCELLED"

	// ErrCodeInvariant indicates an internal invariant violation.
	ErrCodeInvariant RuntimeErrorCode = "INVARIANT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Word != "" && e.RuleID >= 0 {
		return fmt.Sprintf("%s: %s (word=%q, rule=%d)", e.Code, e.Message, e.Word, e.RuleID)
	}
	if e.Word != "" {
		return fmt.Sprintf("%s: %s (word=%q)", e.Code, e.Message, e.Word)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, such as context.Canceled.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsTruncated returns true if the error reports a truncated pass loop.
// Uses errors.As to handle wrapped errors.
func IsTruncated(err error) bool {
	return hasCode(err, ErrCodeTruncated)
}

// IsCycleError returns true if the error reports a revisited word form.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCycle)
}

// IsCancelled returns true if the run stopped because its context ended.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

// IsInvariantError returns true if the engine detected an internal defect.
func IsInvariantError(err error) bool {
	return hasCode(err, ErrCodeInvariant)
}

// NewCycleError creates a RuntimeError for a revisited word form.
func NewCycleError(word string, ruleID int, form string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycle,
		Message: "persistent rule revisited an earlier word form",
		RuleID:  ruleID,
		Word:    word,
		Details: map[string]string{
			"form": form,
		},
	}
}

// NewCancelledError wraps a context error.
func NewCancelledError(word string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCancelled,
		Message: cause.Error(),
		RuleID:  -1,
		Word:    word,
		cause:   cause,
	}
}

// NewInvariantError creates a RuntimeError for an internal defect.
func NewInvariantError(ruleID int, message string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvariant,
		Message: message,
		RuleID:  ruleID,
	}
}
