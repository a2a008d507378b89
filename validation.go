package callchain

import (
	"fmt"
)

// StepValidator provides validation for chain steps
type StepValidator[T any] struct{}

// ValidateStep validates a step for common issues
func (v StepValidator[T]) ValidateStep(step Step[T]) error {
	if step == nil {
		return ErrNilStep
	}
	switch s := step.(type) {
	case StepFunc[T]:
		if s == nil {
			return ErrNilStep
		}
	case *MidFunc[T]:
		if s == nil || s.Fn == nil {
			return ErrNilStep
		}
	case *Chain[T]:
		if s == nil {
			return ErrNilStep
		}
	}

	// Test string representation
	if step.String() == "" {
		return fmt.Errorf("step must provide a non-empty string representation")
	}

	return nil
}

// ValidateChain validates every step of a chain
func (v StepValidator[T]) ValidateChain(c *Chain[T]) error {
	if c == nil {
		return ErrNilChain
	}
	if c.MaxTimeout < 0 {
		return fmt.Errorf("negative max timeout %v", c.MaxTimeout)
	}

	for i, step := range c.Steps {
		if err := v.ValidateStep(step); err != nil {
			return fmt.Errorf("step %d validation failed: %w", i, err)
		}
	}

	return nil
}
