package callchain

import (
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Context is the state shared by every step of a single chain run: a
// key/value store plus the break and error flags steps use to end the run
// early.
//
// A Context lives exactly as long as its run. Once the run has settled the
// Context is sealed and further mutations are ignored, so a step that kept a
// reference past its own completion cannot affect anything.
type Context[T any] struct {
	mu   sync.RWMutex
	data map[string]any

	broken        bool
	breakValue    T
	hasBreakValue bool

	errored    bool
	errorValue error

	runID  uuid.UUID
	stepID uuid.UUID
	step   int
	sealed bool

	log *slog.Logger
}

func newContext[T any](log *slog.Logger) *Context[T] {
	return &Context[T]{
		data:  make(map[string]any),
		runID: nextID(),
		step:  -1,
		log:   log,
	}
}

// Add merges pairs into the store, overwriting existing keys. It is a no-op
// on a nil Context, as when a step runs outside a chain.
func (c *Context[T]) Add(pairs map[string]any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		c.ignored("add")
		return
	}
	maps.Copy(c.data, pairs)
}

// Set stores a single key.
func (c *Context[T]) Set(key string, value any) {
	c.Add(map[string]any{key: value})
}

// Get returns the value stored under key. ok is false if the key was never set.
func (c *Context[T]) Get(key string) (value any, ok bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok = c.data[key]
	return value, ok
}

// Value returns the value stored under key if it holds a V.
func Value[V, T any](c *Context[T], key string) (V, bool) {
	v, ok := c.Get(key)
	if !ok {
		var z V
		return z, false
	}
	typed, ok := v.(V)
	return typed, ok
}

// Data returns a copy of the store.
func (c *Context[T]) Data() map[string]any {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.data)
}

// Break ends the run successfully with value once the current step
// completes; the remaining steps are skipped. If done is not nil it is called
// with value, so a step can break and complete in one call.
func (c *Context[T]) Break(value T, done Callback[T]) {
	c.mu.Lock()
	if c.sealed {
		c.ignored("break")
	} else {
		c.broken = true
		c.breakValue = value
		c.hasBreakValue = true
	}
	c.mu.Unlock()
	if done != nil {
		done(nil, value)
	}
}

// Stop is Break without a value: the run resolves with whatever the current
// step completes with.
func (c *Context[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		c.ignored("stop")
		return
	}
	c.broken = true
	c.hasBreakValue = false
}

// Error fails the run with err once the current step completes. If done is
// not nil it is called with err. A nil err is recorded as ErrAborted.
func (c *Context[T]) Error(err error, done Callback[T]) {
	if err == nil {
		err = ErrAborted
	}
	c.mu.Lock()
	if c.sealed {
		c.ignored("error")
	} else {
		c.errored = true
		c.errorValue = err
	}
	c.mu.Unlock()
	if done != nil {
		var z T
		done(err, z)
	}
}

// Broken reports whether a step asked to break the run.
func (c *Context[T]) Broken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.broken
}

// Errored reports whether a step failed the run through the Context.
func (c *Context[T]) Errored() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errored
}

// RunID identifies the run owning this Context.
func (c *Context[T]) RunID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.runID
}

// StepID identifies the current step execution.
func (c *Context[T]) StepID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stepID
}

// Step returns the index of the current step, or -1 outside a run.
func (c *Context[T]) Step() int {
	if c == nil {
		return -1
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.step
}

// enter marks the start of step i.
func (c *Context[T]) enter(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = i
	c.stepID = nextID()
}

// outcome reports the break and error state consulted after each completion.
func (c *Context[T]) outcome() (broken bool, breakValue T, hasBreakValue bool, errored bool, errorValue error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.broken, c.breakValue, c.hasBreakValue, c.errored, c.errorValue
}

func (c *Context[T]) seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// ignored must be called with mu held.
func (c *Context[T]) ignored(op string) {
	if c.log != nil {
		c.log.Debug("context sealed, mutation ignored", "op", op, "run", c.runID, "step", c.step)
	}
}
