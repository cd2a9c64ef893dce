package statemachine

import (
	"errors"
	"fmt"
)

// Predefined error types.
var (
	// ErrConfiguration indicates a broken machine description. It is fatal:
	// a machine whose configuration fails to compile cannot be used.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrMissingInitState indicates that the configuration has no "init" state.
	ErrMissingInitState = errors.New("missing 'init' state")
	// ErrStateNotFound indicates that an edge points to an undeclared state.
	ErrStateNotFound = errors.New("state not found")

	// ErrAmbiguousGuard indicates that more than one guard predicate held.
	ErrAmbiguousGuard = errors.New("more than one guard predicate matched")

	// ErrTransitionRejected indicates that a send could not produce a transition.
	// It only affects the send that produced it.
	ErrTransitionRejected = errors.New("transition rejected")
	// ErrUnknownMessage indicates that a message is not part of the alphabet.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrUnavailableMessage indicates that the current state has no edge for a message.
	ErrUnavailableMessage = errors.New("message not available in current state")
	// ErrNoGuardMatched indicates that no guard predicate held.
	ErrNoGuardMatched = errors.New("no guard predicate matched")

	// ErrActionFailure indicates that the target state's action failed.
	ErrActionFailure = errors.New("action failed")

	// ErrUninitialized indicates that the machine has not been initialized.
	ErrUninitialized = errors.New("state machine is not initialized")

	// ErrUnknownCallable indicates that an action or predicate descriptor
	// could not be resolved by the invoker.
	ErrUnknownCallable = errors.New("unknown callable")
)

// StateError wraps an error with state context.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with the context of a send.
type TransitionError struct {
	From    string
	Message string
	To      string
	Err     error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("transition from %s on %q: %v", e.From, e.Message, e.Err)
	}

	return fmt.Sprintf("transition %s -> %s on %q: %v", e.From, e.To, e.Message, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from, message, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		From:    from,
		Message: message,
		To:      to,
		Err:     err,
	}
}

// rejected builds the error of a send that produced no transition.
func rejected(from, message string, reason error) error {
	return WrapTransitionError(from, message, "", fmt.Errorf("%w: %w", ErrTransitionRejected, reason))
}

// IsRejected reports whether err is a per-send rejection.
func IsRejected(err error) bool {
	return errors.Is(err, ErrTransitionRejected)
}

// IsActionFailure reports whether err came from a failing action.
func IsActionFailure(err error) bool {
	return errors.Is(err, ErrActionFailure)
}
