// Package future provides a small Future/Promise pair for asynchronous results.
//
// A Future is the read-only side of a computation that settles exactly once,
// either with a value or with an error. The matching Promise is the write side.
// Any number of goroutines may wait on the same Future; settlement is a
// broadcast (a closed channel), so waiting is cheap and never consumes the result.
package future

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/atomic"
)

// ErrPanic is wrapped by the error of a future whose producer panicked.
var ErrPanic = errors.New("panic in future")

// result holds the settled value/error pair.
type result[T any] struct {
	value T
	err   error
}

// Future is the consumer side of an asynchronous computation.
type Future[T any] struct {
	once  sync.Once
	ready chan struct{}
	res   result[T]

	mu        sync.Mutex
	callbacks []func(T, error)

	canceled   *atomic.Bool
	cancelFunc context.CancelFunc
}

// New creates an unsettled future and the promise that settles it.
func New[T any]() (*Future[T], *Promise[T]) {
	fut := &Future[T]{
		ready:    make(chan struct{}),
		canceled: atomic.NewBool(false),
	}

	return fut, &Promise[T]{future: fut}
}

// Completed returns a future that is already settled with value.
func Completed[T any](value T) *Future[T] {
	fut, promise := New[T]()
	promise.Success(value)

	return fut
}

// Failed returns a future that is already settled with err.
func Failed[T any](err error) *Future[T] {
	fut, promise := New[T]()
	promise.Failure(err)

	return fut
}

// Go runs fn in a new goroutine and returns a future for its result.
// A panic in fn settles the future with an error wrapping ErrPanic.
func Go[T any](fn func() (T, error)) *Future[T] {
	fut, promise := New[T]()

	go run(promise, fn)

	return fut
}

// GoContext is like Go, but fn receives a context derived from ctx which is
// canceled when the future is canceled via Cancel.
func GoContext[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	fut, promise := New[T]()

	cctx, cancel := context.WithCancel(ctx)
	fut.cancelFunc = cancel

	go func() {
		defer cancel()

		run(promise, func() (T, error) {
			return fn(cctx)
		})
	}()

	return fut
}

// run executes fn and settles the promise, converting panics into errors.
func run[T any](promise *Promise[T], fn func() (T, error)) {
	defer func() {
		if r := recover(); r != nil {
			promise.Failure(PanicError(r, debug.Stack()))
		}
	}()

	promise.Complete(fn())
}

// PanicError converts a recovered panic value into an error wrapping ErrPanic.
func PanicError(recovered any, stack []byte) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("%w: %w\n%s", ErrPanic, err, stack)
	}

	return fmt.Errorf("%w: %v\n%s", ErrPanic, recovered, stack)
}

// Await blocks until the future settles and returns its value and error.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.ready

	return f.res.value, f.res.err
}

// AwaitContext blocks until the future settles or ctx is done, whichever
// comes first. Giving up on the wait does not cancel the computation.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) { //nolint:ireturn
	select {
	case <-f.ready:
		return f.res.value, f.res.err
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}

// Done returns a channel which is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.ready
}

// IsDone reports whether the future has settled.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

// Cancel requests cancellation of a computation started with GoContext.
// It is a no-op for other futures and after the first call.
func (f *Future[T]) Cancel() {
	if f.canceled.CompareAndSwap(false, true) && f.cancelFunc != nil {
		f.cancelFunc()
	}
}

// IsCanceled reports whether Cancel has been called.
func (f *Future[T]) IsCanceled() bool {
	return f.canceled.Load()
}

// OnResult registers a callback invoked with the settled value and error.
// If the future has already settled the callback is scheduled immediately.
// Callbacks run in their own goroutines and panics inside them are logged.
func (f *Future[T]) OnResult(callback func(T, error)) {
	if callback == nil {
		return
	}

	f.mu.Lock()

	if !f.IsDone() {
		f.callbacks = append(f.callbacks, callback)
		f.mu.Unlock()

		return
	}

	f.mu.Unlock()

	invokeCallback("OnResult", callback, f.res.value, f.res.err)
}

// OnSuccess registers a callback invoked only when the future succeeds.
func (f *Future[T]) OnSuccess(callback func(T)) {
	if callback == nil {
		return
	}

	f.OnResult(func(value T, err error) {
		if err == nil {
			callback(value)
		}
	})
}

// OnError registers a callback invoked only when the future fails.
func (f *Future[T]) OnError(callback func(error)) {
	if callback == nil {
		return
	}

	f.OnResult(func(_ T, err error) {
		if err != nil {
			callback(err)
		}
	})
}

// Map returns a future holding fn applied to the value of f. Errors from f
// propagate unchanged and fn is not called.
func Map[A, B any](fut *Future[A], fn func(A) (B, error)) *Future[B] {
	return Go(func() (B, error) {
		val, err := fut.Await()
		if err != nil {
			var zero B

			return zero, err
		}

		return fn(val)
	})
}
