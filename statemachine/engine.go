package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/amp-labs/fsm/logger"
	"github.com/amp-labs/fsm/merge"
	"go.opentelemetry.io/otel/attribute"
)

// engine holds the execution cursor and implements the transition algorithm.
// It is not synchronized: each strategy guarantees that at most one operation
// touches it at a time.
type engine struct {
	name    string
	id      string
	config  *Configuration
	source  ConfigSource
	invoker ActionInvoker
	logger  Logger

	ready   bool
	current string
	// params holds the live params of every state visited so far.
	params map[string]map[string]any
}

func newEngine(opts *options) *engine {
	return &engine{
		name:    sanitizeMachine(opts.name),
		id:      opts.id,
		config:  opts.config,
		source:  opts.source,
		invoker: opts.invoker,
		logger:  opts.logger,
	}
}

// logContext decorates ctx so that every log line names the machine.
func (e *engine) logContext(ctx context.Context) context.Context {
	return logger.With(ctx, "machine", e.name, "machine_id", e.id)
}

func (e *engine) initialize(ctx context.Context) error {
	ctx = e.logContext(ctx)

	e.ready = false

	if e.source != nil {
		fragment, err := e.source.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetching configuration: %w", err)
		}

		e.config.Extend(fragment)
	}

	if !e.config.Compiled() || e.config.Dirty() {
		if err := e.config.Configure(); err != nil {
			return err
		}
	}

	e.params = make(map[string]map[string]any)

	for _, name := range e.config.States() {
		state, _ := e.config.State(name)
		if state.Params != nil {
			e.params[name] = merge.Clone(state.Params)
		}
	}

	e.params[InitState] = map[string]any{}
	e.current = InitState
	e.ready = true

	e.logger.Initialized(ctx, e.current)

	return nil
}

func (e *engine) checkReady() error {
	if !e.ready {
		return ErrUninitialized
	}

	return nil
}

func (e *engine) states() ([]string, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	return e.config.States(), nil
}

func (e *engine) messages() ([]string, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	return e.config.Messages(), nil
}

func (e *engine) hasMessage(message string) (bool, error) {
	if err := e.checkReady(); err != nil {
		return false, err
	}

	return e.config.HasMessage(message), nil
}

func (e *engine) isAvailable(message string) (bool, error) {
	if err := e.checkReady(); err != nil {
		return false, err
	}

	_, ok := e.config.Edge(e.current, message)

	return ok, nil
}

func (e *engine) available() ([]string, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	return e.config.OutgoingMessages(e.current), nil
}

func (e *engine) currentState() (Snapshot, error) {
	if err := e.checkReady(); err != nil {
		return Snapshot{}, err
	}

	return e.snapshot(), nil
}

// snapshot copies the cursor so that callers can never alias live params.
func (e *engine) snapshot() Snapshot {
	return Snapshot{Name: e.current, Params: merge.Clone(e.params[e.current])}
}

// send wraps transition with logging, tracing and metrics.
func (e *engine) send(ctx context.Context, message string, params map[string]any) (Snapshot, error) {
	ctx = e.logContext(ctx)

	from := e.current

	ctx, span := startSendSpan(ctx, e.name, e.id, from, message)

	start := time.Now()

	e.logger.TransitionStarted(ctx, from, message)

	snap, err := e.transition(ctx, message, params)

	switch {
	case err == nil:
		span.SetAttributes(attribute.String("to_state", snap.Name))
		transitionsTotal.WithLabelValues(e.name, from, snap.Name, message).Inc()
		e.logger.TransitionCommitted(ctx, from, snap.Name, message, time.Since(start))
	case IsRejected(err):
		sendErrorsTotal.WithLabelValues(e.name, from, errorReason(err)).Inc()
		e.logger.TransitionRejected(ctx, from, message, err)
	default:
		sendErrorsTotal.WithLabelValues(e.name, from, errorReason(err)).Inc()
		e.logger.TransitionFailed(ctx, from, message, err)
	}

	finishSpan(span, err)

	return snap, err
}

// transition validates message against the current state, resolves the edge,
// runs the target state's action and commits. Nothing is committed unless
// every step succeeds.
func (e *engine) transition(ctx context.Context, message string, params map[string]any) (Snapshot, error) {
	if err := e.checkReady(); err != nil {
		return Snapshot{}, err
	}

	from := e.current

	if !e.config.HasMessage(message) {
		return Snapshot{}, rejected(from, message, ErrUnknownMessage)
	}

	edge, ok := e.config.Edge(from, message)
	if !ok {
		return Snapshot{}, rejected(from, message, ErrUnavailableMessage)
	}

	current := e.snapshot()

	to, err := Resolve(ctx, e.invoker, current, message, edge)
	if err != nil {
		return Snapshot{}, err
	}

	target, ok := e.config.State(to)
	if !ok {
		return Snapshot{}, WrapTransitionError(from, message, to,
			fmt.Errorf("%w: %w", ErrConfiguration, ErrStateNotFound))
	}

	args := current.clone()
	if params != nil {
		args.Params = merge.Deep(args.Params, params)
	}

	result, err := e.runAction(ctx, target, args)
	if err != nil {
		return Snapshot{}, WrapTransitionError(from, message, to, fmt.Errorf("%w: %w", ErrActionFailure, err))
	}

	prevParams, hadParams := e.params[from]

	switch {
	case result == nil && hadParams:
		e.params[to] = prevParams
	case result != nil:
		e.params[to] = merge.Deep(e.params[to], result)
	}

	e.current = to

	return e.snapshot(), nil
}

// runAction invokes the action of target, if any, and waits for it to settle.
func (e *engine) runAction(ctx context.Context, target State, args Snapshot) (map[string]any, error) {
	if !target.HasAction() {
		return nil, nil
	}

	actionCtx, span := startActionSpan(ctx, target.Name)

	start := time.Now()

	result, err := e.invoker.InvokeAction(actionCtx, target.Action, args).AwaitContext(actionCtx)

	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}

	actionDuration.WithLabelValues(e.name, target.Name, outcome).Observe(time.Since(start).Seconds())

	finishSpan(span, err)

	return result, err
}
