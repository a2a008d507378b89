package callchain

import (
	"sync/atomic"
	"time"
)

// watchdog fires once after its deadline unless stopped first.
type watchdog struct {
	t *time.Timer
}

func startWatchdog(d time.Duration, fire func()) *watchdog {
	return &watchdog{t: time.AfterFunc(d, fire)}
}

// stop is safe on a nil watchdog. A fire already in flight is not cancelled,
// callers must tolerate it.
func (w *watchdog) stop() {
	if w == nil || w.t == nil {
		return
	}
	w.t.Stop()
}

// TimeoutMiddleware returns a middleware that enforces a deadline on a single
// step. If the step doesn't complete within the specified duration, it fails
// with a *TimeoutError and its later completion is ignored.
func TimeoutMiddleware[T any](timeout time.Duration) Middleware[T] {
	return func(next Step[T]) Step[T] {
		return &MidFunc[T]{
			Name: "Timeout",
			Next: next,
			Fn: func(done Callback[T], value T, c *Context[T]) {
				var fired atomic.Bool
				step := c.Step()
				dog := startWatchdog(timeout, func() {
					if fired.CompareAndSwap(false, true) {
						var z T
						done(&TimeoutError{Step: step, Name: stepString(next), After: timeout}, z)
					}
				})
				next.Run(func(err error, v T) {
					if fired.CompareAndSwap(false, true) {
						dog.stop()
						done(err, v)
					}
				}, value, c)
			},
		}
	}
}
