package future

import (
	"fmt"

	"github.com/alitto/pond/v2"
)

// Submit runs fn on the given worker pool and returns a future for its result.
// If the pool refuses the task (for example because it was stopped) the
// returned future fails immediately.
func Submit[T any](pool pond.Pool, fn func() (T, error)) *Future[T] {
	fut, promise := New[T]()

	err := pool.Go(func() {
		run(promise, fn)
	})
	if err != nil {
		promise.Failure(fmt.Errorf("submitting task to pool: %w", err))
	}

	return fut
}
