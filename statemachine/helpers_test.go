package statemachine

import (
	"context"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

var strategies = []StrategyKind{StrategyImmediate, StrategySerialized}

// newTestMachine builds and initializes a machine whose logs go to t.
func newTestMachine(t *testing.T, kind StrategyKind, raw RawConfig, opts ...Option) *Machine {
	t.Helper()

	m := newUninitialized(t, kind, raw, opts...)
	require.NoError(t, m.Initialize(t.Context()))

	return m
}

func newUninitialized(t *testing.T, kind StrategyKind, raw RawConfig, opts ...Option) *Machine {
	t.Helper()

	base := []Option{
		WithConfig(raw),
		WithStrategy(kind),
		WithName(t.Name()),
		WithLogger(NewDefaultLogger(slogt.New(t))),
	}

	m, err := NewMachine(append(base, opts...)...)
	require.NoError(t, err)

	return m
}

func returning(result map[string]any) ActionFunc {
	return func(context.Context, Snapshot) (map[string]any, error) {
		return result, nil
	}
}

func failing(err error) ActionFunc {
	return func(context.Context, Snapshot) (map[string]any, error) {
		return nil, err
	}
}

// endToEndConfig is init --go--> mid --finish--> end, where entering mid
// yields {x: 1}.
func endToEndConfig() RawConfig {
	return RawConfig{
		"init": map[string]any{
			"transitions": map[string]any{"go": "mid"},
		},
		"mid": map[string]any{
			"transitions": map[string]any{"finish": "end"},
			"action":      returning(map[string]any{"x": 1}),
		},
		"end": map[string]any{},
	}
}

type staticSource struct {
	fragment RawConfig
	err      error
	calls    int
}

func (s *staticSource) Fetch(context.Context) (RawConfig, error) {
	s.calls++

	return s.fragment, s.err
}
