package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{
			name: "word and rule",
			err:  NewCycleError("ac", 2, "ac"),
			want: `CYCLE: persistent rule revisited an earlier word form (word="ac", rule=2)`,
		},
		{
			name: "word only",
			err:  NewCancelledError("ac", context.Canceled),
			want: `CANCELLED: context canceled (word="ac")`,
		},
		{
			name: "bare",
			err:  &RuntimeError{Code: ErrCodeInvariant, Message: "boom", RuleID: -1},
			want: "INVARIANT: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRuntimeError_Predicates(t *testing.T) {
	cycle := NewCycleError("a", 0, "a")
	cancelled := NewCancelledError("a", context.DeadlineExceeded)
	invariant := NewInvariantError(1, "span outside word")
	truncated := &RuntimeError{Code: ErrCodeTruncated, RuleID: 0}

	assert.True(t, IsCycleError(cycle))
	assert.True(t, IsCycleError(fmt.Errorf("wrapped: %w", cycle)))
	assert.False(t, IsCycleError(cancelled))

	assert.True(t, IsCancelled(cancelled))
	assert.True(t, errors.Is(cancelled, context.DeadlineExceeded))

	assert.True(t, IsInvariantError(invariant))
	assert.True(t, IsTruncated(truncated))
	assert.False(t, IsTruncated(errors.New("plain")))
	assert.False(t, IsTruncated(nil))
}

func TestRuntimeError_Details(t *testing.T) {
	err := NewCycleError("ac", 2, "bc")
	assert.Equal(t, "bc", err.Details["form"])
	assert.Nil(t, err.Unwrap())
}
