package callchain

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// runner holds the state of a single chain run.
//
// The completion signal handed to step i only has an effect while the run is
// unsettled and i is the step currently running. Late signals (after a
// timeout or a break) and duplicate signals are dropped, so the terminal
// callback fires exactly once.
//
// A step that signals before its Run returns does not start the next step
// from inside its own call: invoke picks the next step up once Run returns,
// so a synchronous chain runs in constant stack depth.
type runner[T any] struct {
	mu        sync.Mutex
	steps     []Step[T]
	completed int
	settled   bool
	timeout   time.Duration
	dog       *watchdog

	// calling is the index of the step whose Run is on the stack, or -1.
	calling int
	pending bool
	next    T

	ctx     *Context[T]
	log     *slog.Logger
	resolve func(T)
	reject  func(error)
}

func newRunner[T any](steps []Step[T], timeout time.Duration, log *slog.Logger, resolve func(T), reject func(error)) *runner[T] {
	return &runner[T]{
		steps:   steps,
		timeout: timeout,
		calling: -1,
		ctx:     newContext[T](log),
		log:     log,
		resolve: resolve,
		reject:  reject,
	}
}

func (r *runner[T]) start(value T) {
	r.mu.Lock()
	if len(r.steps) == 0 {
		r.settle()
		r.mu.Unlock()
		r.resolve(value)
		return
	}
	r.mu.Unlock()
	r.invoke(0, value)
}

// invoke runs step i, then every following step that completes before its
// Run returns.
func (r *runner[T]) invoke(i int, value T) {
	for {
		r.mu.Lock()
		if r.settled {
			r.mu.Unlock()
			return
		}
		r.ctx.enter(i)
		r.arm(i)
		r.calling = i
		r.mu.Unlock()

		r.call(i, value)

		r.mu.Lock()
		r.calling = -1
		if !r.pending {
			r.mu.Unlock()
			return
		}
		r.pending = false
		i, value = r.completed, r.next
		var z T
		r.next = z
		r.mu.Unlock()
	}
}

func (r *runner[T]) call(i int, value T) {
	step := r.steps[i]
	r.log.Debug("step start", "run", r.ctx.RunID(), "step", i, "name", step)
	defer func() {
		if rec := recover(); rec != nil {
			var z T
			if !r.complete(i, &PanicError{Value: rec, Stack: debug.Stack()}, z) {
				// the step had already completed; the panic is not ours to swallow
				panic(rec)
			}
			r.log.Error("panic recover", "run", r.ctx.RunID(), "step", i, "panic", rec)
		}
	}()
	step.Run(r.signal(i), value, r.ctx)
}

func (r *runner[T]) signal(i int) Callback[T] {
	return func(err error, value T) {
		r.complete(i, err, value)
	}
}

// complete applies the outcome of step i. It reports false when the signal
// was dropped.
func (r *runner[T]) complete(i int, err error, value T) bool {
	r.mu.Lock()
	if r.settled || i != r.completed {
		r.mu.Unlock()
		r.log.Debug("late completion ignored", "run", r.ctx.RunID(), "step", i, "err", err)
		return false
	}
	r.dog.stop()

	if err != nil {
		r.settle()
		r.mu.Unlock()
		r.log.Debug("step failed", "run", r.ctx.RunID(), "step", i, "err", err)
		r.reject(err)
		return true
	}

	broken, breakValue, hasBreakValue, errored, errorValue := r.ctx.outcome()
	switch {
	case broken:
		r.settle()
		r.mu.Unlock()
		if hasBreakValue {
			value = breakValue
		}
		r.log.Debug("chain broken", "run", r.ctx.RunID(), "step", i)
		r.resolve(value)
		return true
	case errored:
		r.settle()
		r.mu.Unlock()
		r.log.Debug("chain errored", "run", r.ctx.RunID(), "step", i, "err", errorValue)
		r.reject(errorValue)
		return true
	}

	r.completed++
	if r.completed == len(r.steps) {
		r.settle()
		r.mu.Unlock()
		r.log.Debug("chain done", "run", r.ctx.RunID(), "steps", r.completed)
		r.resolve(value)
		return true
	}
	if r.calling == i {
		// Run of step i is still on the stack; invoke continues from there.
		r.pending = true
		r.next = value
		r.mu.Unlock()
		return true
	}
	next := r.completed
	r.mu.Unlock()
	r.invoke(next, value)
	return true
}

// arm must be called with mu held.
func (r *runner[T]) arm(i int) {
	if r.timeout <= 0 {
		return
	}
	r.dog = startWatchdog(r.timeout, func() { r.expire(i) })
}

func (r *runner[T]) expire(i int) {
	r.mu.Lock()
	if r.settled || i != r.completed {
		r.mu.Unlock()
		return
	}
	r.settle()
	r.mu.Unlock()
	err := &TimeoutError{Step: i, Name: fmt.Sprint(r.steps[i]), After: r.timeout}
	r.log.Warn("step timed out", "run", r.ctx.RunID(), "step", i, "after", r.timeout)
	r.reject(err)
}

// settle must be called with mu held.
func (r *runner[T]) settle() {
	r.settled = true
	r.dog.stop()
	r.dog = nil
	r.ctx.seal()
}
