package statemachine

import (
	"context"
	"fmt"
)

// Machine is the entry point for hosts. It owns a configuration and delegates
// execution to the strategy chosen at construction time.
type Machine struct {
	TransitionStrategy

	id       string
	name     string
	kind     StrategyKind
	config   *Configuration
	queueing *Serialized
}

// NewMachine builds a machine from opts. The machine must be initialized
// before use.
func NewMachine(opts ...Option) (*Machine, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		id:     o.id,
		name:   sanitizeMachine(o.name),
		kind:   o.strategy,
		config: o.config,
	}

	switch o.strategy {
	case StrategyImmediate:
		m.TransitionStrategy = &Immediate{engine: newEngine(o)}
	case StrategySerialized:
		m.queueing = &Serialized{engine: newEngine(o)}
		m.TransitionStrategy = m.queueing
	case StrategyDefault:
		fallthrough
	default:
		return nil, fmt.Errorf("%w: unsupported strategy %s", errInvalidOption, o.strategy)
	}

	return m, nil
}

// ID returns the unique identifier of this machine instance.
func (m *Machine) ID() string {
	return m.id
}

// Name returns the machine name used in logs and metrics.
func (m *Machine) Name() string {
	return m.name
}

// Strategy returns the execution variant in use.
func (m *Machine) Strategy() StrategyKind {
	return m.kind
}

// Configuration returns the machine's configuration.
func (m *Machine) Configuration() *Configuration {
	return m.config
}

// Extend merges fragment into the configuration. It takes effect on the next
// Initialize.
func (m *Machine) Extend(fragment RawConfig) {
	m.config.Extend(fragment)
}

// SendAndWait sends message and waits for the transition to settle.
func (m *Machine) SendAndWait(ctx context.Context, message string, params map[string]any) (Snapshot, error) {
	return m.Send(ctx, message, params).AwaitContext(ctx)
}

// IsTerminal reports whether the current state has no outgoing edges.
func (m *Machine) IsTerminal(ctx context.Context) (bool, error) {
	available, err := m.Available(ctx)
	if err != nil {
		return false, err
	}

	return len(available) == 0, nil
}

// Idle reports whether the machine has no pending operations. Immediate
// machines are always idle between calls.
func (m *Machine) Idle() bool {
	if m.queueing == nil {
		return true
	}

	return m.queueing.Idle()
}
