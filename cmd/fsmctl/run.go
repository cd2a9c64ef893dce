package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/fsm/cli"
	"github.com/amp-labs/fsm/logger"
	"github.com/amp-labs/fsm/merge"
	"github.com/amp-labs/fsm/statemachine"
	"github.com/amp-labs/fsm/statemachine/loader"
)

var (
	errNoDocument     = errors.New("set FSM_CONFIG or FSM_CONFIG_URL")
	errOrphanParam    = errors.New("param given before any message")
	errNotInteractive = errors.New("interactive mode needs a terminal on stdin and stdout")
)

// Config is read from the environment (and .env).
type Config struct {
	ConfigPath  string `env:"FSM_CONFIG"`
	ConfigURL   string `env:"FSM_CONFIG_URL"`
	Interactive bool   `env:"FSM_INTERACTIVE" envDefault:"false"`
	Strategy    string `env:"FSM_STRATEGY"`
	Name        string `env:"FSM_NAME"        envDefault:"fsmctl"`
	Plain       bool   `env:"FSM_PLAIN"       envDefault:"false"`
	Width       int    `env:"FSM_WIDTH"       envDefault:"60"`
	Workers     int    `env:"FSM_WORKERS"     envDefault:"4"`
}

// step is one message with its params.
type step struct {
	message string
	params  map[string]any
}

// Run builds the machine described by cfg and either sends the messages in
// args or, in interactive mode, prompts for them.
func Run(ctx context.Context, cfg Config, args []string, stdin io.ReadCloser, stdout io.WriteCloser) error {
	pool := pond.NewPool(max(cfg.Workers, 1), pond.WithContext(ctx))
	defer pool.StopAndWait()

	m, err := newMachine(cfg, builtins(pool))
	if err != nil {
		return err
	}

	ctx = logger.With(ctx, "machine", m.Name(), "machine_id", m.ID())

	if err := m.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing machine: %w", err)
	}

	if err := show(ctx, m, cfg, stdout); err != nil {
		return err
	}

	if cfg.Interactive {
		return interactive(ctx, m, cfg, &cli.Prompter{Stdin: stdin, Stdout: stdout})
	}

	steps, err := parseSteps(args)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if _, err := m.SendAndWait(ctx, s.message, s.params); err != nil {
			return fmt.Errorf("sending %q: %w", s.message, err)
		}

		if err := show(ctx, m, cfg, stdout); err != nil {
			return err
		}
	}

	return nil
}

func newMachine(cfg Config, registry *statemachine.Registry) (*statemachine.Machine, error) {
	kind, err := statemachine.ParseStrategyKind(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	opts := []statemachine.Option{
		statemachine.WithName(cfg.Name),
		statemachine.WithInvoker(registry),
		statemachine.WithStrategy(kind),
	}

	switch {
	case cfg.ConfigPath == "" && cfg.ConfigURL == "":
		return nil, errNoDocument
	case cfg.ConfigPath != "":
		raw, err := statemachine.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}

		opts = append(opts, statemachine.WithConfig(raw))
	}

	if cfg.ConfigURL != "" {
		opts = append(opts, statemachine.WithSource(loader.HTTP(cfg.ConfigURL)))
	}

	return statemachine.NewMachine(opts...)
}

// builtins registers the callables available to documents run by fsmctl.
func builtins(pool pond.Pool) *statemachine.Registry {
	return statemachine.NewRegistry().
		RegisterAction("noop", func(context.Context, statemachine.Snapshot) (map[string]any, error) {
			return nil, nil
		}).
		RegisterAction("echo", func(_ context.Context, prev statemachine.Snapshot) (map[string]any, error) {
			return merge.Clone(prev.Params), nil
		}).
		RegisterAsyncAction("stamp", statemachine.PooledAction(pool,
			func(_ context.Context, prev statemachine.Snapshot) (map[string]any, error) {
				return map[string]any{"visited_" + prev.Name: true}, nil
			})).
		RegisterPredicate("always", func(context.Context, statemachine.Snapshot) bool { return true }).
		RegisterPredicate("never", func(context.Context, statemachine.Snapshot) bool { return false })
}

func parseSteps(args []string) ([]step, error) {
	var steps []step

	for _, arg := range args {
		if !strings.Contains(arg, "=") {
			steps = append(steps, step{message: arg})

			continue
		}

		if len(steps) == 0 {
			return nil, fmt.Errorf("%w: %q", errOrphanParam, arg)
		}

		params, err := cli.ParseParams([]string{arg})
		if err != nil {
			return nil, err
		}

		last := &steps[len(steps)-1]
		last.params = merge.Deep(last.params, params)
	}

	return steps, nil
}

func interactive(ctx context.Context, m *statemachine.Machine, cfg Config, prompter *cli.Prompter) error {
	if prompter.Stdin == nil || prompter.Stdout == nil {
		return errNotInteractive
	}

	for ctx.Err() == nil {
		state, err := m.CurrentState(ctx)
		if err != nil {
			return err
		}

		available, err := m.Available(ctx)
		if err != nil {
			return err
		}

		if len(available) == 0 {
			logger.Get(ctx).InfoContext(ctx, "Reached a terminal state", "state", state.Name)

			return nil
		}

		message, err := prompter.SelectMessage(state.Name, available)
		if errors.Is(err, cli.ErrQuit) {
			return nil
		} else if err != nil {
			return err
		}

		params, err := prompter.PromptParams()
		if errors.Is(err, cli.ErrQuit) {
			return nil
		} else if err != nil {
			return err
		}

		if _, err := m.SendAndWait(ctx, message, params); err != nil {
			if statemachine.IsRejected(err) || statemachine.IsActionFailure(err) {
				logger.Get(ctx).WarnContext(ctx, "Send failed", "message", message, "error", err)

				continue
			}

			return err
		}

		if err := show(ctx, m, cfg, prompter.Stdout); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func show(ctx context.Context, m *statemachine.Machine, cfg Config, out io.Writer) error {
	state, err := m.CurrentState(ctx)
	if err != nil {
		return err
	}

	_, err = io.WriteString(out, cli.RenderSnapshot(state, cfg.Width, cfg.Plain))

	return err
}
