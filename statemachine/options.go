package statemachine

import (
	"errors"
	"fmt"

	"github.com/amp-labs/fsm/merge"
	"github.com/google/uuid"
)

// StrategyKind selects the execution variant of a Machine.
type StrategyKind int

const (
	// StrategyDefault picks Serialized when a ConfigSource is set and
	// Immediate otherwise.
	StrategyDefault StrategyKind = iota
	StrategyImmediate
	StrategySerialized
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyImmediate:
		return "immediate"
	case StrategySerialized:
		return "serialized"
	case StrategyDefault:
		return "default"
	default:
		return fmt.Sprintf("StrategyKind(%d)", int(k))
	}
}

// ParseStrategyKind converts a name such as "immediate" into a StrategyKind.
func ParseStrategyKind(name string) (StrategyKind, error) {
	switch name {
	case "", "default":
		return StrategyDefault, nil
	case "immediate", "sync":
		return StrategyImmediate, nil
	case "serialized", "async":
		return StrategySerialized, nil
	default:
		return StrategyDefault, fmt.Errorf("%w: unknown strategy %q", errInvalidOption, name)
	}
}

var errInvalidOption = errors.New("invalid option")

// Option configures a machine.
type Option func(*options)

type options struct {
	name     string
	id       string
	raw      RawConfig
	config   *Configuration
	source   ConfigSource
	invoker  ActionInvoker
	logger   Logger
	strategy StrategyKind
}

// WithConfig sets the raw configuration. Repeated calls deep-merge the
// fragments in order.
func WithConfig(raw RawConfig) Option {
	return func(o *options) {
		if o.raw == nil {
			o.raw = RawConfig{}
		}

		o.raw = merge.Deep(o.raw, raw)
	}
}

// WithConfiguration shares an existing Configuration with the machine.
// Fragments given through WithConfig are merged into it.
func WithConfiguration(config *Configuration) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithSource sets a source whose fragment is fetched and merged into the
// configuration on every Initialize.
func WithSource(source ConfigSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithInvoker sets the invoker used for actions and predicates. Defaults to
// an empty Registry, which accepts func descriptors only.
func WithInvoker(invoker ActionInvoker) Option {
	return func(o *options) {
		o.invoker = invoker
	}
}

// WithStrategy selects the execution variant used by NewMachine.
func WithStrategy(kind StrategyKind) Option {
	return func(o *options) {
		o.strategy = kind
	}
}

// WithLogger sets the logging hooks. Defaults to a DefaultLogger backed by
// the context logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithName names the machine in logs, spans and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func buildOptions(opts []Option) (*options, error) {
	o := &options{}

	for _, opt := range opts {
		opt(o)
	}

	switch {
	case o.config == nil:
		o.config = NewConfiguration(o.raw)
	case o.raw != nil:
		o.config.Extend(o.raw)
	}

	if o.invoker == nil {
		o.invoker = NewRegistry()
	}

	if o.logger == nil {
		o.logger = NewDefaultLogger(nil)
	}

	if o.strategy == StrategyDefault {
		if o.source != nil {
			o.strategy = StrategySerialized
		} else {
			o.strategy = StrategyImmediate
		}
	}

	if o.id == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating machine id: %w", err)
		}

		o.id = id.String()
	}

	return o, nil
}

// cloneParams copies send params so later caller mutations cannot leak into
// a queued transition.
func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	return merge.Clone(params)
}
