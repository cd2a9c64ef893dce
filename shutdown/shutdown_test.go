package shutdown

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	mut.Lock()
	defer mut.Unlock()

	hooks = nil
	trigger = nil
}

//nolint:paralleltest // Package state is global
func TestBeforeShutdownRunsHooksInOrder(t *testing.T) {
	reset()

	var order []int

	BeforeShutdown(func() { order = append(order, 1) })
	BeforeShutdown(func() { order = append(order, 2) })

	cleanup()

	assert.Equal(t, []int{1, 2}, order)

	mut.Lock()
	assert.Nil(t, hooks)
	mut.Unlock()
}

//nolint:paralleltest // Package state is global
func TestShutdownCancelsContextAfterHooks(t *testing.T) {
	reset()

	var hookRan atomic.Bool

	ctx := SetupHandler(t.Context())

	BeforeShutdown(func() { hookRan.Store(true) })

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	Shutdown()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not canceled")
	}

	assert.True(t, hookRan.Load())

	// A second call has no handler to notify and must not block.
	Shutdown()
}

//nolint:paralleltest // Package state is global
func TestParentCancellation(t *testing.T) {
	reset()

	var hookRan atomic.Bool

	parent, cancel := context.WithCancel(t.Context())
	ctx := SetupHandler(parent)

	BeforeShutdown(func() { hookRan.Store(true) })
	cancel()

	require.Eventually(t, func() bool { return ctx.Err() != nil }, 2*time.Second, time.Millisecond)
	require.Eventually(t, hookRan.Load, 2*time.Second, time.Millisecond)
}

//nolint:paralleltest // Package state is global
func TestShutdownWithoutHandler(t *testing.T) {
	reset()

	assert.NotPanics(t, Shutdown)
}
