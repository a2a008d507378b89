package callchain_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	cc "github.com/veggiemonk/callchain"
)

func TestRunWithTimeout(t *testing.T) {
	late := make(chan cc.Callback[int], 1)
	var after atomic.Bool

	_, err := await(t, func(done cc.Callback[int]) {
		cc.RunWithTimeout(cc.Steps(
			func(done cc.Callback[int], _ int, _ *cc.Context[int]) { done(nil, 1) },
			func(done cc.Callback[int], _ int, _ *cc.Context[int]) {
				// never completes on time
				late <- done
			},
			func(done cc.Callback[int], v int, _ *cc.Context[int]) {
				after.Store(true)
				done(nil, v)
			},
		), 20*time.Millisecond, done)
	})

	var te *cc.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("got %v, want *TimeoutError", err)
	}
	if te.Step != 1 {
		t.Errorf("timed out step %d, want 1", te.Step)
	}
	if !errors.Is(err, cc.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("%v should match ErrTimeout and context.DeadlineExceeded", err)
	}

	// the abandoned step completing afterwards changes nothing
	(<-late)(nil, 99)
	if after.Load() {
		t.Error("a step ran after the timeout")
	}
}

func TestRunWithTimeoutFastSteps(t *testing.T) {
	step := func(done cc.Callback[int], v int, _ *cc.Context[int]) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			done(nil, v+1)
		}()
	}
	got, err := await(t, func(done cc.Callback[int]) {
		cc.RunWithTimeout(cc.Steps(step, step, step, step), 200*time.Millisecond, done)
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 4 {
		t.Fatalf("got %d, want 4", got)
	}
}

func TestRunWithTimeoutFirstStep(t *testing.T) {
	_, err := await(t, func(done cc.Callback[int]) {
		c := &cc.Chain[int]{MaxTimeout: 10 * time.Millisecond, Logger: testLogger()}
		c.Steps = cc.Steps(func(cc.Callback[int], int, *cc.Context[int]) {})
		c.Run(done, 0, nil)
	})
	var te *cc.TimeoutError
	if !errors.As(err, &te) || te.Step != 0 {
		t.Fatalf("got %v, want timeout on step 0", err)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		delay   time.Duration
		wantErr bool
	}{
		{"completes in time", 0, false},
		{"too slow", 100 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slow := cc.StepFunc[int](func(done cc.Callback[int], v int, _ *cc.Context[int]) {
				if tt.delay == 0 {
					done(nil, v+1)
					return
				}
				go func() {
					time.Sleep(tt.delay)
					done(nil, v+1)
				}()
			})
			c := cc.New(cc.TimeoutMiddleware[int](20 * time.Millisecond))
			c.Steps = []cc.Step[int]{slow}

			got, err := await(t, func(done cc.Callback[int]) { c.Run(done, 1, nil) })
			if tt.wantErr {
				if !errors.Is(err, cc.ErrTimeout) {
					t.Fatalf("got %v, want ErrTimeout", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != 2 {
				t.Fatalf("got %d, want 2", got)
			}
		})
	}
}

func TestRunWithTimeoutPerStep(t *testing.T) {
	var steps []cc.Step[int]
	for i := range 4 {
		steps = append(steps, cc.StepFunc[int](func(done cc.Callback[int], v int, c *cc.Context[int]) {
			if c.Step() != i {
				t.Errorf("step %d saw index %d", i, c.Step())
			}
			time.Sleep(20 * time.Millisecond)
			c.Set(fmt.Sprint("step", i), true)
			done(nil, v+1)
		}))
	}
	var data map[string]any
	steps = append(steps, cc.Tap(func(_ int, c *cc.Context[int]) error {
		data = c.Data()
		return nil
	}))

	// the run takes longer than the limit; only each step is bounded
	got, err := await(t, func(done cc.Callback[int]) {
		cc.RunWithTimeout(steps, 50*time.Millisecond, done)
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 4 {
		t.Errorf("got %d, want 4", got)
	}
	if len(data) != 4 {
		t.Errorf("got %d keys in context, want 4: %v", len(data), data)
	}
}
