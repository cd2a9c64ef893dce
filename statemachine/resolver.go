package statemachine

import (
	"context"
	"fmt"
)

// Resolve turns an edge into a single target state name. Direct edges are
// returned unchanged. For guarded edges every predicate is evaluated in order
// against the current snapshot and exactly one of them must hold: two or more
// matches is an ErrAmbiguousGuard, none is a rejection wrapping
// ErrNoGuardMatched.
func Resolve(
	ctx context.Context,
	invoker ActionInvoker,
	current Snapshot,
	message string,
	edge Edge,
) (string, error) {
	if !edge.IsGuarded() {
		return edge.To, nil
	}

	var passed []string

	for i, guard := range edge.Guards {
		ok, err := invoker.InvokePredicate(ctx, guard.Predicate, current.clone())
		if err != nil {
			return "", WrapTransitionError(current.Name, message, guard.To,
				fmt.Errorf("guard %d: %w", i, err))
		}

		if ok {
			passed = append(passed, guard.To)
		}
	}

	switch len(passed) {
	case 1:
		return passed[0], nil
	case 0:
		return "", rejected(current.Name, message, ErrNoGuardMatched)
	default:
		return "", WrapTransitionError(current.Name, message, "",
			fmt.Errorf("%w: candidates %v", ErrAmbiguousGuard, passed))
	}
}
