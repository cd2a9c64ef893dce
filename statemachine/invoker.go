package statemachine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/fsm/future"
)

// Registry is the default ActionInvoker. Descriptors may be func values
// (ActionFunc, AsyncActionFunc, PredicateFunc or their plain signatures) or
// names registered beforehand, which is how documents loaded from YAML or JSON
// refer to host code.
type Registry struct {
	mu         sync.RWMutex
	actions    map[string]AsyncActionFunc
	predicates map[string]PredicateFunc
}

var _ ActionInvoker = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions:    make(map[string]AsyncActionFunc),
		predicates: make(map[string]PredicateFunc),
	}
}

// RegisterAction registers a synchronous action under name.
func (r *Registry) RegisterAction(name string, fn ActionFunc) *Registry {
	return r.RegisterAsyncAction(name, syncAction(fn))
}

// RegisterAsyncAction registers an asynchronous action under name.
func (r *Registry) RegisterAsyncAction(name string, fn AsyncActionFunc) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[name] = fn

	return r
}

// RegisterPredicate registers a guard predicate under name.
func (r *Registry) RegisterPredicate(name string, fn PredicateFunc) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.predicates[name] = fn

	return r
}

// InvokeAction resolves and calls an action. Resolution failures and panics
// in synchronous actions become a failed future.
func (r *Registry) InvokeAction(ctx context.Context, action any, prev Snapshot) *future.Future[map[string]any] {
	fn, err := r.resolveAction(action)
	if err != nil {
		return future.Failed[map[string]any](err)
	}

	fut := fn(ctx, prev)
	if fut == nil {
		return future.Completed[map[string]any](nil)
	}

	return fut
}

// InvokePredicate resolves and evaluates a predicate.
func (r *Registry) InvokePredicate(ctx context.Context, predicate any, current Snapshot) (ok bool, err error) {
	fn, err := r.resolvePredicate(predicate)
	if err != nil {
		return false, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = future.PanicError(rec, debug.Stack())
		}
	}()

	return fn(ctx, current), nil
}

func (r *Registry) resolveAction(action any) (AsyncActionFunc, error) {
	switch fn := action.(type) {
	case nil:
		return func(context.Context, Snapshot) *future.Future[map[string]any] {
			return future.Completed[map[string]any](nil)
		}, nil
	case string:
		r.mu.RLock()
		registered, ok := r.actions[fn]
		r.mu.RUnlock()

		if !ok {
			return nil, fmt.Errorf("%w: action %q", ErrUnknownCallable, fn)
		}

		return registered, nil
	case AsyncActionFunc:
		return fn, nil
	case func(context.Context, Snapshot) *future.Future[map[string]any]:
		return fn, nil
	case ActionFunc:
		return syncAction(fn), nil
	case func(context.Context, Snapshot) (map[string]any, error):
		return syncAction(fn), nil
	case func(Snapshot) map[string]any:
		return syncAction(func(_ context.Context, prev Snapshot) (map[string]any, error) {
			return fn(prev), nil
		}), nil
	default:
		return nil, fmt.Errorf("%w: unsupported action type %T", ErrUnknownCallable, action)
	}
}

func (r *Registry) resolvePredicate(predicate any) (PredicateFunc, error) {
	switch fn := predicate.(type) {
	case string:
		r.mu.RLock()
		registered, ok := r.predicates[fn]
		r.mu.RUnlock()

		if !ok {
			return nil, fmt.Errorf("%w: predicate %q", ErrUnknownCallable, fn)
		}

		return registered, nil
	case bool:
		return func(context.Context, Snapshot) bool { return fn }, nil
	case PredicateFunc:
		return fn, nil
	case func(context.Context, Snapshot) bool:
		return fn, nil
	case func(Snapshot) bool:
		return func(_ context.Context, current Snapshot) bool { return fn(current) }, nil
	default:
		return nil, fmt.Errorf("%w: unsupported predicate type %T", ErrUnknownCallable, predicate)
	}
}

// syncAction adapts a synchronous action. It runs in the calling goroutine
// and its result is delivered through an already settled future.
func syncAction(fn ActionFunc) AsyncActionFunc {
	return func(ctx context.Context, prev Snapshot) (fut *future.Future[map[string]any]) {
		defer func() {
			if rec := recover(); rec != nil {
				fut = future.Failed[map[string]any](future.PanicError(rec, debug.Stack()))
			}
		}()

		result, err := fn(ctx, prev)
		if err != nil {
			return future.Failed[map[string]any](err)
		}

		return future.Completed(result)
	}
}

// PooledAction runs fn on a worker pool instead of the goroutine processing
// the transition.
func PooledAction(pool pond.Pool, fn ActionFunc) AsyncActionFunc {
	return func(ctx context.Context, prev Snapshot) *future.Future[map[string]any] {
		return future.Submit(pool, func() (map[string]any, error) {
			return fn(ctx, prev)
		})
	}
}
