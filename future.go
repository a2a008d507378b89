package callchain

import (
	"context"
	"sync"
)

// Future is the deferred outcome of a chain run. It settles exactly once.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

func (f *Future[T]) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles or ctx is done. It does not cancel the
// run: when ctx wins the run keeps going and its outcome is still recorded.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var z T
		return z, ctx.Err()
	}
}

// Then calls done with the outcome once the future settles, on its own
// goroutine.
func (f *Future[T]) Then(done Callback[T]) {
	go func() {
		<-f.done
		done(f.err, f.value)
	}()
}
