package callchain

import (
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/go-cmp/cmp"
)

// LoggerMiddleware returns a middleware that logs step execution using the provided slog.Logger.
func LoggerMiddleware[T any](l *slog.Logger) Middleware[T] {
	return func(next Step[T]) Step[T] {
		return &MidFunc[T]{
			Name: "Logger",
			Next: next,
			Fn: func(done Callback[T], value T, c *Context[T]) {
				start := time.Now()
				name := Name(next)
				l.Info("start", "Type", name, "run", c.RunID(), "id", c.StepID(), "STEP", next)
				next.Run(func(err error, v T) {
					if err != nil {
						l.Info("failed", "Type", name, "id", c.StepID(), "duration", time.Since(start), "err", err)
					} else {
						l.Info("done", "Type", name, "id", c.StepID(), "duration", time.Since(start),
							"Result", fmt.Sprintf("%v", v))
					}
					done(err, v)
				}, value, c)
			},
		}
	}
}

// Tap turns a synchronous side effect into a step. The running value is
// passed through unchanged; a non-nil error from fn fails the step.
//
//	callchain.Tap(func(v Order, c *callchain.Context[Order]) error {
//		c.Set("order", v.ID)
//		return nil
//	})
func Tap[T any](fn func(value T, c *Context[T]) error) Step[T] {
	return StepFunc[T](func(done Callback[T], value T, c *Context[T]) {
		done(fn(value, c), value)
	})
}

// StoreInContext stores the running value under key before running next.
func StoreInContext[T any](key string, next Step[T]) Step[T] {
	return &MidFunc[T]{
		Name: "StoreInContext",
		Next: next,
		Fn: func(done Callback[T], value T, c *Context[T]) {
			c.Set(key, value)
			next.Run(done, value, c)
		},
	}
}

// IfValue skips next, passing the running value through, when the running
// value is the zero value of its type. An interface holding a zero value
// counts as zero.
func IfValue[T any](next Step[T]) Step[T] {
	return &MidFunc[T]{
		Name: "IfValue",
		Next: next,
		Fn: func(done Callback[T], value T, c *Context[T]) {
			if isZero(value) {
				done(nil, value)
				return
			}
			next.Run(done, value, c)
		},
	}
}

func isZero[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	return rv.IsZero()
}

// Expected fails the step with an *ExpectationError when next succeeds with
// a value different from want. Values are compared with cmp.Equal.
func Expected[T any](want T, next Step[T], message string, opts ...cmp.Option) Step[T] {
	return &MidFunc[T]{
		Name: "Expected",
		Next: next,
		Fn: func(done Callback[T], value T, c *Context[T]) {
			next.Run(func(err error, got T) {
				if err == nil && !cmp.Equal(want, got, opts...) {
					err = &ExpectationError{Message: message, Got: got, Diff: cmp.Diff(want, got, opts...)}
				}
				done(err, got)
			}, value, c)
		},
	}
}

// Decorate returns a callback that transforms successful values with fn
// before handing them to done. Errors pass through untouched.
//
//	func(done callchain.Callback[int], _ int, _ *callchain.Context[int]) {
//		fetch("counter", callchain.Decorate(parse, done))
//	}
func Decorate[T any](fn func(T) T, done Callback[T]) Callback[T] {
	return func(err error, value T) {
		if err != nil {
			done(err, value)
			return
		}
		done(nil, fn(value))
	}
}

// Guard returns a callback that sends successful values to fn and errors to
// done. With a nil done an error panics.
func Guard[T any](fn func(T), done Callback[T]) Callback[T] {
	return func(err error, value T) {
		if err == nil {
			fn(value)
			return
		}
		if done != nil {
			done(err, value)
			return
		}
		panic(err)
	}
}
