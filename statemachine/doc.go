// Package statemachine implements a declarative finite-state machine engine.
//
// A machine is described by a raw configuration: a mapping from state name to
// a state object with an optional "action" and an optional "transitions" block
// mapping message names to edges. An edge is either the name of a target state
// or an ordered list of guarded transitions ({predicate, to}) of which exactly
// one predicate must hold when the message is sent. The configuration must
// contain a state literally named "init".
//
//	init:
//	  transitions:
//	    go: mid
//	mid:
//	  action: stamp
//	  transitions:
//	    finish: end
//	end: {}
//
// The Configuration type compiles the raw form into a state table, a
// transition table and the message alphabet. A TransitionStrategy executes
// transitions against a compiled configuration:
//
//   - Immediate runs every operation in the caller's goroutine.
//   - Serialized chains every operation onto a single-slot queue so that sends
//     (and reads) are processed strictly in the order they were issued, even
//     when actions complete asynchronously.
//
// Machine ties a configuration, a strategy, an ActionInvoker and an optional
// remote ConfigSource together and is the usual entry point.
//
// On every successful send the target state's action receives a snapshot of
// the previous state (its name and params merged with the send parameters).
// A nil result carries the previous params forward unchanged; a non-nil
// result is deep-merged into the target state's params.
package statemachine
