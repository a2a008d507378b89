package callchain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("step timed out")

	// ErrAborted is recorded when a step calls Context.Error with a nil error.
	ErrAborted = errors.New("chain aborted")

	// ErrNilStep is returned for a nil step in a chain.
	ErrNilStep = errors.New("step cannot be nil")

	// ErrNilChain is returned when running or validating a nil chain.
	ErrNilChain = errors.New("chain cannot be nil")
)

// TimeoutError reports a step that did not complete within its deadline.
// It matches both ErrTimeout and context.DeadlineExceeded.
type TimeoutError struct {
	Step  int
	Name  string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout in chain step %d (%s) after %v", e.Step, e.Name, e.After)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, context.DeadlineExceeded}
}

// PanicError carries a value recovered from a panicking step or operation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the recovered value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ExpectationError is produced by Expected when a step output differs from
// the wanted value.
type ExpectationError struct {
	Message string
	Got     any
	Diff    string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("%s %v (-want +got):\n%s", e.Message, e.Got, e.Diff)
}
