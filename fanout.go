package callchain

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"dario.cat/mergo"
	"github.com/ccoveille/go-safecast"
	"golang.org/x/sync/errgroup"
)

// FanOut configures how the fan-out combinators launch their operations.
type FanOut struct {
	// Limit bounds the number of operation functions running at once.
	// Launching blocks the caller while the limit is reached. Zero means
	// no limit.
	Limit int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultFanOut returns the configuration used by MapChain, ParallelMap,
// Parallel and ParallelAll.
func DefaultFanOut() FanOut {
	return FanOut{}
}

func (f FanOut) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// gather launches n operations, each on its own goroutine, and calls finish
// exactly once with the arguments of the completion that arrived last.
// record is called for every first completion of an operation, possibly
// concurrently.
func gather[R any](cfg FanOut, n int, run func(i int, done Callback[R]), record func(i int, err error, v R), finish func(err error, v R)) {
	if n == 0 {
		var z R
		finish(nil, z)
		return
	}
	count, err := safecast.ToInt32(n)
	if err != nil {
		panic(fmt.Errorf("callchain: too many operations: %w", err))
	}
	log := cfg.logger()

	var remaining atomic.Int32
	remaining.Store(count)

	var g errgroup.Group
	if cfg.Limit > 0 {
		g.SetLimit(cfg.Limit)
	}
	for i := range n {
		var fired atomic.Bool
		var done Callback[R] = func(err error, v R) {
			if !fired.CompareAndSwap(false, true) {
				log.Debug("duplicate completion ignored", "op", i, "err", err)
				return
			}
			record(i, err, v)
			if remaining.Add(-1) == 0 {
				finish(err, v)
			}
		}
		g.Go(func() error {
			defer func() {
				if fired.Load() {
					// the operation already completed; a panic from here on
					// belongs to a downstream callback and keeps unwinding
					return
				}
				if r := recover(); r != nil {
					log.Error("panic recover", "op", i, "panic", r)
					var z R
					done(&PanicError{Value: r, Stack: debug.Stack()}, z)
				}
			}()
			run(i, done)
			return nil
		})
	}
}

// MapChain calls fn for every item concurrently. Once all of them completed,
// done receives the results in input order, along with the errors if any
// operation failed. errs is nil when every operation succeeded.
//
// fn must not be nil.
func MapChain[I, R any](items []I, fn func(item I, done Callback[R]), done func(errs []error, values []R)) {
	MapChainWith(DefaultFanOut(), items, fn, done)
}

// MapChainWith is MapChain with an explicit configuration.
func MapChainWith[I, R any](cfg FanOut, items []I, fn func(item I, done Callback[R]), done func(errs []error, values []R)) {
	if fn == nil {
		panic("callchain: MapChain called with a nil function")
	}
	var (
		mu     sync.Mutex
		errs   []error
		values = make([]R, len(items))
	)
	gather(cfg, len(items),
		func(i int, cb Callback[R]) { fn(items[i], cb) },
		func(i int, err error, v R) {
			values[i] = v
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		},
		func(error, R) {
			mu.Lock()
			defer mu.Unlock()
			done(errs, values)
		},
	)
}

// ParallelMap is MapChain without the ordering: values are appended in
// completion order and do not line up with items.
//
// fn must not be nil.
func ParallelMap[I, R any](items []I, fn func(item I, done Callback[R]), done func(errs []error, values []R)) {
	ParallelMapWith(DefaultFanOut(), items, fn, done)
}

// ParallelMapWith is ParallelMap with an explicit configuration.
func ParallelMapWith[I, R any](cfg FanOut, items []I, fn func(item I, done Callback[R]), done func(errs []error, values []R)) {
	if fn == nil {
		panic("callchain: ParallelMap called with a nil function")
	}
	var (
		mu     sync.Mutex
		errs   []error
		values = make([]R, 0, len(items))
	)
	gather(cfg, len(items),
		func(i int, cb Callback[R]) { fn(items[i], cb) },
		func(_ int, err error, v R) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			values = append(values, v)
		},
		func(error, R) {
			mu.Lock()
			defer mu.Unlock()
			done(errs, values)
		},
	)
}

// Parallel runs every operation concurrently and calls done once all of them
// completed. Results are not buffered: done receives the error and value of
// the operation that completed last. Use ParallelAll to collect everything.
//
// An empty list completes immediately with a zero value.
func Parallel[T any](ops []func(done Callback[T]), done Callback[T]) {
	checkOps(ops)
	gather(DefaultFanOut(), len(ops),
		func(i int, cb Callback[T]) { ops[i](cb) },
		func(int, error, T) {},
		done,
	)
}

// ParallelAll runs every operation concurrently and hands done every result,
// in the order of ops.
func ParallelAll[T any](ops []func(done Callback[T]), done func(errs []error, values []T)) {
	checkOps(ops)
	MapChain(ops, func(op func(Callback[T]), cb Callback[T]) { op(cb) }, done)
}

func checkOps[T any](ops []func(Callback[T])) {
	for i, op := range ops {
		if op == nil {
			panic(fmt.Sprintf("callchain: operation %d is nil", i))
		}
	}
}

// MergeFunc combines the results of parallel operations into dst.
type MergeFunc[T any] func(dst *T, results ...*T) (*T, error)

// ParallelMerge runs every operation concurrently, then merges all of their
// results into base. When any operation failed, done receives the joined
// errors and base is left untouched.
func ParallelMerge[T any](base *T, merge MergeFunc[T], ops []func(done Callback[*T]), done Callback[*T]) {
	ParallelAll(ops, func(errs []error, values []*T) {
		if len(errs) > 0 {
			done(errors.Join(errs...), nil)
			return
		}
		merged, err := merge(base, values...)
		done(err, merged)
	})
}

// MergeTransform is a merge function that merges the results of multiple
// operations into a single result using the mergo library.
func MergeTransform[T any](opts ...func(*mergo.Config)) MergeFunc[T] {
	return func(dst *T, results ...*T) (*T, error) {
		if dst == nil {
			dst = new(T)
		}
		for _, r := range results {
			if r == nil {
				continue
			}
			if err := mergo.Merge(dst, r, opts...); err != nil {
				return nil, err
			}
		}
		return dst, nil
	}
}

// Merge fills the empty fields of dst from results using the mergo library.
func Merge[T any](dst *T, results ...*T) (*T, error) {
	return MergeTransform[T]()(dst, results...)
}
