package callchain_test

import (
	"errors"
	"testing"
	"time"

	cc "github.com/veggiemonk/callchain"
)

// TestStepValidation tests the validation functionality
func TestStepValidation(t *testing.T) {
	type TestData struct {
		Value int
	}

	validator := cc.StepValidator[TestData]{}
	valid := cc.StepFunc[TestData](func(done cc.Callback[TestData], v TestData, _ *cc.Context[TestData]) {
		done(nil, v)
	})

	t.Run("nil step validation", func(t *testing.T) {
		if err := validator.ValidateStep(nil); !errors.Is(err, cc.ErrNilStep) {
			t.Errorf("Expected ErrNilStep, got %v", err)
		}
	})

	t.Run("nil step func validation", func(t *testing.T) {
		if err := validator.ValidateStep(cc.StepFunc[TestData](nil)); !errors.Is(err, cc.ErrNilStep) {
			t.Errorf("Expected ErrNilStep, got %v", err)
		}
	})

	t.Run("middleware without function", func(t *testing.T) {
		if err := validator.ValidateStep(&cc.MidFunc[TestData]{Name: "Broken", Next: valid}); !errors.Is(err, cc.ErrNilStep) {
			t.Errorf("Expected ErrNilStep, got %v", err)
		}
	})

	t.Run("valid step validation", func(t *testing.T) {
		if err := validator.ValidateStep(valid); err != nil {
			t.Errorf("Expected no error for valid step, got %v", err)
		}
	})

	t.Run("chain validation", func(t *testing.T) {
		c := cc.New[TestData]()
		c.Steps = []cc.Step[TestData]{valid, cc.IfValue[TestData](valid)}

		if err := validator.ValidateChain(c); err != nil {
			t.Errorf("Expected no error for valid chain, got %v", err)
		}
	})

	t.Run("chain with nil step", func(t *testing.T) {
		c := cc.New[TestData]()
		c.Steps = []cc.Step[TestData]{valid, nil}

		err := validator.ValidateChain(c)
		if !errors.Is(err, cc.ErrNilStep) {
			t.Errorf("Expected ErrNilStep, got %v", err)
		}
		if err != nil && err.Error() != "step 1 validation failed: step cannot be nil" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("negative timeout", func(t *testing.T) {
		c := &cc.Chain[TestData]{MaxTimeout: -time.Second}
		if err := validator.ValidateChain(c); err == nil {
			t.Error("Expected error for negative timeout")
		}
	})

	t.Run("nil chain validation", func(t *testing.T) {
		if err := validator.ValidateChain(nil); !errors.Is(err, cc.ErrNilChain) {
			t.Errorf("Expected ErrNilChain, got %v", err)
		}
	})
}
