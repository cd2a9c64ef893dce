package statemachine

import (
	"context"

	"github.com/amp-labs/fsm/future"
	"github.com/amp-labs/fsm/merge"
)

// InitState is the name of the state every configuration must declare.
const InitState = "init"

// Reserved keys of a raw state object.
const (
	keyTransitions = "transitions"
	keyAction      = "action"
	keyPredicate   = "predicate"
	keyTo          = "to"
)

// RawConfig is the uncompiled, declarative machine description: state name to
// state object.
type RawConfig map[string]any

// State is a compiled state. Params holds the params declared in the
// configuration; the live params of a running machine belong to its cursor.
// Attributes keeps any other keys of the state object.
type State struct {
	Name       string
	Action     any
	Params     map[string]any
	Attributes map[string]any
}

// HasAction reports whether the state declares an action.
func (s State) HasAction() bool {
	return s.Action != nil
}

// Guard is one candidate of a guarded edge.
type Guard struct {
	Predicate any
	To        string
}

// Edge is the transition attached to a (state, message) pair: either a direct
// target or an ordered list of guards.
type Edge struct {
	To     string
	Guards []Guard
}

// IsGuarded reports whether the edge is resolved through predicates.
func (e Edge) IsGuarded() bool {
	return len(e.Guards) > 0
}

// Snapshot is an immutable view of a state as handed to actions and
// predicates and returned to callers.
type Snapshot struct {
	Name   string
	Params map[string]any
}

// clone returns a snapshot whose params can be modified without affecting s.
func (s Snapshot) clone() Snapshot {
	return Snapshot{Name: s.Name, Params: merge.Clone(s.Params)}
}

// ActionFunc is a synchronous action. A nil map means "no result".
type ActionFunc func(ctx context.Context, prev Snapshot) (map[string]any, error)

// AsyncActionFunc is an action whose result settles later.
type AsyncActionFunc func(ctx context.Context, prev Snapshot) *future.Future[map[string]any]

// PredicateFunc decides whether a guard holds for the current state.
type PredicateFunc func(ctx context.Context, current Snapshot) bool

// ActionInvoker is the capability used to call actions and predicates. The
// engine passes descriptors through untouched; how they are resolved is up to
// the invoker.
type ActionInvoker interface {
	InvokeAction(ctx context.Context, action any, prev Snapshot) *future.Future[map[string]any]
	InvokePredicate(ctx context.Context, predicate any, current Snapshot) (bool, error)
}

// ConfigSource supplies an additional configuration fragment, typically
// fetched from a remote location, before a machine initializes.
type ConfigSource interface {
	Fetch(ctx context.Context) (RawConfig, error)
}

// TransitionStrategy is the contract shared by the execution variants.
type TransitionStrategy interface {
	// Initialize compiles the configuration if needed and moves the cursor to
	// the init state with empty params. Calling it again re-initializes.
	Initialize(ctx context.Context) error
	States(ctx context.Context) ([]string, error)
	Messages(ctx context.Context) ([]string, error)
	HasMessage(ctx context.Context, message string) (bool, error)
	IsAvailable(ctx context.Context, message string) (bool, error)
	Available(ctx context.Context) ([]string, error)
	CurrentState(ctx context.Context) (Snapshot, error)
	// Send requests a transition. The returned future settles with the new
	// current state or with the error that prevented the transition.
	Send(ctx context.Context, message string, params map[string]any) *future.Future[Snapshot]
}
