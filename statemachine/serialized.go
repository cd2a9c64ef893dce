package statemachine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/amp-labs/fsm/future"
)

// Serialized processes operations one at a time in the order they were
// issued. Every call, reads included, is queued behind the operations issued
// before it, so a read always observes the outcome of earlier sends and a
// send validates its message against the state left by the previous one.
//
// The queue is a single slot: the machine only remembers the last scheduled
// unit. Each new unit waits for that one to settle, whatever its outcome.
type Serialized struct {
	engine *engine

	mu   sync.Mutex
	tail *future.Future[struct{}]
}

var _ TransitionStrategy = (*Serialized)(nil)

// NewSerialized creates a machine that executes operations asynchronously
// through its queue.
func NewSerialized(opts ...Option) (*Serialized, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Serialized{engine: newEngine(o)}, nil
}

// schedule attaches work behind the current tail of s's queue.
func schedule[T any](ctx context.Context, s *Serialized, work func(ctx context.Context) (T, error)) *future.Future[T] {
	result, promise := future.New[T]()
	settled, done := future.New[struct{}]()

	s.mu.Lock()
	prev := s.tail
	s.tail = settled
	s.mu.Unlock()

	depth := queueDepth.WithLabelValues(s.engine.name)
	depth.Inc()

	go func() {
		defer func() {
			s.mu.Lock()
			if s.tail == settled {
				s.tail = nil
			}
			s.mu.Unlock()

			depth.Dec()
			done.Success(struct{}{})
		}()

		if prev != nil {
			<-prev.Done()
		}

		promise.Complete(runUnit(ctx, work))
	}()

	return result
}

// runUnit executes one unit of work, turning panics into errors. A context
// that is already done when the unit reaches the head fails the unit.
func runUnit[T any](ctx context.Context, work func(ctx context.Context) (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = future.PanicError(r, debug.Stack())
		}
	}()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	return work(ctx)
}

// Idle reports whether no operation is queued or running.
func (m *Serialized) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tail == nil
}

// Initialize queues a (re)initialization and blocks until it has run. Earlier
// operations finish first.
func (m *Serialized) Initialize(ctx context.Context) error {
	_, err := schedule(ctx, m, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.engine.initialize(ctx)
	}).Await()

	return err
}

// States queues behind pending operations and returns the compiled state names.
func (m *Serialized) States(ctx context.Context) ([]string, error) {
	return schedule(ctx, m, func(context.Context) ([]string, error) {
		return m.engine.states()
	}).AwaitContext(ctx)
}

// Messages queues behind pending operations and returns the message alphabet.
func (m *Serialized) Messages(ctx context.Context) ([]string, error) {
	return schedule(ctx, m, func(context.Context) ([]string, error) {
		return m.engine.messages()
	}).AwaitContext(ctx)
}

// HasMessage queues behind pending operations and reports whether message is
// part of the alphabet.
func (m *Serialized) HasMessage(ctx context.Context, message string) (bool, error) {
	return schedule(ctx, m, func(context.Context) (bool, error) {
		return m.engine.hasMessage(message)
	}).AwaitContext(ctx)
}

// IsAvailable reports whether message has an edge from the state left by
// every previously issued send.
func (m *Serialized) IsAvailable(ctx context.Context, message string) (bool, error) {
	return schedule(ctx, m, func(context.Context) (bool, error) {
		return m.engine.isAvailable(message)
	}).AwaitContext(ctx)
}

// Available lists the messages leaving the state reached after all pending
// sends have settled.
func (m *Serialized) Available(ctx context.Context) ([]string, error) {
	return schedule(ctx, m, func(context.Context) ([]string, error) {
		return m.engine.available()
	}).AwaitContext(ctx)
}

// CurrentState returns a copy of the cursor once all pending sends have settled.
func (m *Serialized) CurrentState(ctx context.Context) (Snapshot, error) {
	return schedule(ctx, m, func(context.Context) (Snapshot, error) {
		return m.engine.currentState()
	}).AwaitContext(ctx)
}

// Send queues a transition and returns immediately. The future settles once
// every earlier operation has settled and the transition has committed or
// failed.
func (m *Serialized) Send(ctx context.Context, message string, params map[string]any) *future.Future[Snapshot] {
	params = cloneParams(params)

	return schedule(ctx, m, func(ctx context.Context) (Snapshot, error) {
		return m.engine.send(ctx, message, params)
	})
}
