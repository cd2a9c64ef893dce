package statemachine

import (
	"context"
	"sync"

	"github.com/amp-labs/fsm/future"
)

// Immediate runs every operation in the caller's goroutine. Operations on the
// same machine are mutually exclusive, so a Send blocks other callers until
// its action has settled.
type Immediate struct {
	mu     sync.Mutex
	engine *engine
}

var _ TransitionStrategy = (*Immediate)(nil)

// NewImmediate creates a machine that executes transitions synchronously.
func NewImmediate(opts ...Option) (*Immediate, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Immediate{engine: newEngine(o)}, nil
}

// Initialize fetches and compiles the configuration and moves the cursor to init.
func (m *Immediate) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.engine.initialize(ctx)
}

// States returns the compiled state names in natural order.
func (m *Immediate) States(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.engine.states()
}

// Messages returns the message alphabet in first-seen order.
func (m *Immediate) Messages(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.engine.messages()
}

// HasMessage reports whether message is part of the alphabet.
func (m *Immediate) HasMessage(_ context.Context, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.engine.hasMessage(message)
}

// IsAvailable reports whether the current state has an edge for message.
func (m *Immediate) IsAvailable(_ context.Context, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.engine.isAvailable(message)
}

// Available lists the messages leaving the current state.
func (m *Immediate) Available(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.engine.available()
}

// CurrentState returns a copy of the cursor.
func (m *Immediate) CurrentState(_ context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.engine.currentState()
}

// Send performs the transition before returning. The returned future is
// always settled.
func (m *Immediate) Send(ctx context.Context, message string, params map[string]any) *future.Future[Snapshot] {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.engine.send(ctx, message, params)
	if err != nil {
		return future.Failed[Snapshot](err)
	}

	return future.Completed(snap)
}
