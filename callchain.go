package callchain

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"time"
)

// Callback is the completion signal of a step or an operation. It must be
// invoked exactly once with either a non-nil error or a value.
type Callback[T any] func(err error, value T)

// Step is the basic unit of work in a chain. Run receives the completion
// signal, the running value produced by the previous step and the Context
// shared by every step of the run. Run may call done synchronously or from
// another goroutine, but it must call it exactly once. When done is called
// before Run returns, the next step starts after Run returns.
type Step[T any] interface {
	Run(done Callback[T], value T, c *Context[T])
	fmt.Stringer
}

// Name returns the name of a step.
func Name[T any](s Step[T]) string {
	t := reflect.TypeOf(s)
	if t == nil {
		return "nil"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var z [0]T // zero alloc
	pkg := reflect.TypeOf(z).Elem().PkgPath()
	if pkg == "" {
		return t.Name()
	}
	return strings.Replace(t.Name(), pkg+".", "", 1)
}

type typ struct{}

var (
	_ Step[typ] = (*Chain[typ])(nil)
	_ Step[typ] = (*MidFunc[typ])(nil)
	_ Step[typ] = StepFunc[typ](nil)
)

// StepFunc is an adapter to allow the use of ordinary functions as chain steps.
type StepFunc[T any] func(done Callback[T], value T, c *Context[T])

// Run executes the function.
func (f StepFunc[T]) Run(done Callback[T], value T, c *Context[T]) {
	f(done, value, c)
}

// String returns the name of the function.
func (f StepFunc[T]) String() string {
	var z T
	return fmt.Sprintf("StepFunc[%T]", z)
}

// Steps turns plain functions into a step list.
func Steps[T any](fns ...func(done Callback[T], value T, c *Context[T])) []Step[T] {
	steps := make([]Step[T], len(fns))
	for i, fn := range fns {
		if fn != nil {
			steps[i] = StepFunc[T](fn)
		}
	}
	return steps
}

// Middleware

// MidFunc is a step that wraps another step. Fn is expected to run Next.
type MidFunc[T any] struct {
	Name string
	Next Step[T]
	Fn   func(done Callback[T], value T, c *Context[T])
}

// Run executes the function.
func (f *MidFunc[T]) Run(done Callback[T], value T, c *Context[T]) {
	f.Fn(done, value, c)
}

// String returns the middleware name wrapping the name of the next step.
func (f *MidFunc[T]) String() string {
	return fmt.Sprintf("%s(%s)", f.Name, stepString(f.Next))
}

// Middleware is a function that wraps a step to add functionality, such as
// logging or a deadline.
type Middleware[T any] func(s Step[T]) Step[T]

// Mid is a slice of middleware.
type Mid[T any] []Middleware[T]

func (m Mid[T]) wrap(s Step[T]) Step[T] {
	for _, mw := range slices.Backward(m) {
		s = mw(s)
	}
	return s
}

// Chain

// Chain runs its steps strictly in order. Each step receives the value
// produced by the previous one and a Context shared by the whole run.
//
// A Chain is itself a Step: nested chains run with their own Context and
// hand their terminal value to the next step of the outer chain.
type Chain[T any] struct {
	Steps []Step[T]
	Mid[T]

	// MaxTimeout arms a watchdog right before every step's Run. Zero
	// disables it.
	MaxTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a new chain with the given middleware.
func New[T any](mid ...Middleware[T]) *Chain[T] {
	return &Chain[T]{
		Mid:   mid,
		Steps: make([]Step[T], 0),
	}
}

// Run executes the chain starting with value and calls done exactly once
// with the terminal outcome.
func (c *Chain[T]) Run(done Callback[T], value T, _ *Context[T]) {
	if done == nil {
		done = func(error, T) {}
	}
	c.start(value,
		func(v T) { done(nil, v) },
		func(err error) {
			var z T
			done(err, z)
		},
	)
}

// Promise executes the chain starting with value and returns a Future that
// settles with the terminal outcome.
func (c *Chain[T]) Promise(value T) *Future[T] {
	f := newFuture[T]()
	c.start(value, f.resolve, f.reject)
	return f
}

func (c *Chain[T]) start(value T, resolve func(T), reject func(error)) {
	if err := (StepValidator[T]{}).ValidateChain(c); err != nil {
		reject(err)
		return
	}
	steps := make([]Step[T], len(c.Steps))
	for i, s := range c.Steps {
		steps[i] = c.wrap(s)
	}
	newRunner(steps, c.MaxTimeout, c.logger(), resolve, reject).start(value)
}

func (c *Chain[T]) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// String renders the chain as a tree.
func (c *Chain[T]) String() string {
	var buf strings.Builder
	buf.WriteString(Name[T](c))
	for i, s := range c.Steps {
		branch, indent := "├── ", "│   "
		if i == len(c.Steps)-1 {
			branch, indent = "└── ", "    "
		}
		if s != nil {
			s = c.wrap(s)
		}
		for j, line := range strings.Split(stepString(s), "\n") {
			buf.WriteString("\n")
			if j == 0 {
				buf.WriteString(branch)
			} else {
				buf.WriteString(indent)
			}
			buf.WriteString(line)
		}
	}
	return buf.String()
}

func stepString[T any](s Step[T]) string {
	if s == nil {
		return "nil"
	}
	return s.String()
}

// Run executes steps in order with a zero initial value and calls done
// exactly once.
func Run[T any](steps []Step[T], done Callback[T]) {
	var z T
	(&Chain[T]{Steps: steps}).Run(done, z, nil)
}

// RunWithTimeout is Run with a watchdog armed before every step. A step that
// does not complete within maxTimeout fails the run with a *TimeoutError.
func RunWithTimeout[T any](steps []Step[T], maxTimeout time.Duration, done Callback[T]) {
	var z T
	(&Chain[T]{Steps: steps, MaxTimeout: maxTimeout}).Run(done, z, nil)
}

// Promise executes steps in order with a zero initial value and returns a
// Future holding the terminal outcome.
func Promise[T any](steps []Step[T]) *Future[T] {
	var z T
	return (&Chain[T]{Steps: steps}).Promise(z)
}
