package future

// Promise is the write side of a Future. Only the first call to Success,
// Failure or Complete has any effect; later calls are ignored.
type Promise[T any] struct {
	future *Future[T]
}

// Future returns the future settled by this promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Success settles the future with value.
func (p *Promise[T]) Success(value T) {
	p.fulfill(result[T]{value: value})
}

// Failure settles the future with err. The value is the zero value of T.
func (p *Promise[T]) Failure(err error) {
	p.fulfill(result[T]{err: err})
}

// Complete settles the future from a (value, error) pair, following the
// usual Go convention that a non-nil error makes the value meaningless.
func (p *Promise[T]) Complete(value T, err error) {
	if err != nil {
		p.Failure(err)
	} else {
		p.Success(value)
	}
}

// fulfill stores the result, wakes every waiter and schedules callbacks.
// The mutex is held while closing the channel so that OnResult can never
// observe an unsettled future and then miss its callback.
func (p *Promise[T]) fulfill(res result[T]) {
	fut := p.future

	fut.once.Do(func() {
		fut.res = res

		fut.mu.Lock()
		close(fut.ready)
		callbacks := fut.callbacks
		fut.callbacks = nil
		fut.mu.Unlock()

		for _, callback := range callbacks {
			invokeCallback("OnResult", callback, res.value, res.err)
		}
	})
}
