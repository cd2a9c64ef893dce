package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/amp-labs/fsm/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEnd(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			m := newTestMachine(t, kind, endToEndConfig())

			state, err := m.CurrentState(ctx)
			require.NoError(t, err)
			assert.Equal(t, Snapshot{Name: InitState, Params: map[string]any{}}, state)

			state, err = m.SendAndWait(ctx, "go", nil)
			require.NoError(t, err)
			assert.Equal(t, "mid", state.Name)
			assert.Equal(t, map[string]any{"x": 1}, state.Params)

			state, err = m.SendAndWait(ctx, "finish", nil)
			require.NoError(t, err)
			assert.Equal(t, "end", state.Name)
			assert.Equal(t, map[string]any{"x": 1}, state.Params)

			available, err := m.Available(ctx)
			require.NoError(t, err)
			assert.Empty(t, available)

			terminal, err := m.IsTerminal(ctx)
			require.NoError(t, err)
			assert.True(t, terminal)
		})
	}
}

func TestQueries(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			m := newTestMachine(t, kind, endToEndConfig())

			states, err := m.States(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"end", "init", "mid"}, states)

			messages, err := m.Messages(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"go", "finish"}, messages)

			ok, err := m.HasMessage(ctx, "finish")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = m.HasMessage(ctx, "jump")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = m.IsAvailable(ctx, "go")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = m.IsAvailable(ctx, "finish")
			require.NoError(t, err)
			assert.False(t, ok)

			available, err := m.Available(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"go"}, available)
		})
	}
}

func TestUninitialized(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			m := newUninitialized(t, kind, endToEndConfig())

			_, err := m.SendAndWait(ctx, "go", nil)
			require.ErrorIs(t, err, ErrUninitialized)

			_, err = m.CurrentState(ctx)
			require.ErrorIs(t, err, ErrUninitialized)

			_, err = m.States(ctx)
			require.ErrorIs(t, err, ErrUninitialized)

			_, err = m.Messages(ctx)
			require.ErrorIs(t, err, ErrUninitialized)

			_, err = m.HasMessage(ctx, "go")
			require.ErrorIs(t, err, ErrUninitialized)

			_, err = m.IsAvailable(ctx, "go")
			require.ErrorIs(t, err, ErrUninitialized)

			_, err = m.Available(ctx)
			require.ErrorIs(t, err, ErrUninitialized)

			require.NoError(t, m.Initialize(ctx))

			_, err = m.SendAndWait(ctx, "go", nil)
			require.NoError(t, err)
		})
	}
}

func TestInitializeMissingInit(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			m := newUninitialized(t, kind, RawConfig{"start": map[string]any{}})

			err := m.Initialize(t.Context())
			require.ErrorIs(t, err, ErrConfiguration)
			require.ErrorIs(t, err, ErrMissingInitState)

			_, err = m.CurrentState(t.Context())
			require.ErrorIs(t, err, ErrUninitialized)
		})
	}
}

func TestRejectedSends(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()

			called := false
			raw := endToEndConfig()
			raw["mid"].(map[string]any)["action"] = ActionFunc(func(context.Context, Snapshot) (map[string]any, error) {
				called = true

				return nil, nil
			})

			m := newTestMachine(t, kind, raw)

			_, err := m.SendAndWait(ctx, "teleport", nil)
			require.ErrorIs(t, err, ErrTransitionRejected)
			require.ErrorIs(t, err, ErrUnknownMessage)

			_, err = m.SendAndWait(ctx, "finish", nil)
			require.ErrorIs(t, err, ErrTransitionRejected)
			require.ErrorIs(t, err, ErrUnavailableMessage)

			assert.False(t, called)

			state, err := m.CurrentState(ctx)
			require.NoError(t, err)
			assert.Equal(t, InitState, state.Name)
		})
	}
}

func TestActionFailureDoesNotAdvance(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			fail := true

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{"transitions": map[string]any{"try": "done"}},
				"done": map[string]any{
					"action": ActionFunc(func(context.Context, Snapshot) (map[string]any, error) {
						if fail {
							fail = false

							return nil, errBoom
						}

						return map[string]any{"attempt": 2}, nil
					}),
				},
			})

			_, err := m.SendAndWait(ctx, "try", nil)
			require.ErrorIs(t, err, ErrActionFailure)
			require.ErrorIs(t, err, errBoom)
			assert.True(t, IsActionFailure(err))

			var transitionErr *TransitionError
			require.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, "done", transitionErr.To)

			state, err := m.CurrentState(ctx)
			require.NoError(t, err)
			assert.Equal(t, InitState, state.Name)

			state, err = m.SendAndWait(ctx, "try", nil)
			require.NoError(t, err)
			assert.Equal(t, Snapshot{Name: "done", Params: map[string]any{"attempt": 2}}, state)
		})
	}
}

func TestActionPanicIsFailure(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{"transitions": map[string]any{"go": "boom"}},
				"boom": map[string]any{
					"action": ActionFunc(func(context.Context, Snapshot) (map[string]any, error) {
						panic("action exploded")
					}),
				},
			})

			_, err := m.SendAndWait(t.Context(), "go", nil)
			require.ErrorIs(t, err, ErrActionFailure)
			require.ErrorIs(t, err, future.ErrPanic)
		})
	}
}

func TestActionReceivesPreviousSnapshot(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()

			var seen []Snapshot

			record := ActionFunc(func(_ context.Context, prev Snapshot) (map[string]any, error) {
				seen = append(seen, prev)
				prev.Params["scribble"] = true

				return map[string]any{"count": len(seen)}, nil
			})

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{"transitions": map[string]any{"next": "a"}},
				"a": map[string]any{
					"action":      record,
					"params":      map[string]any{"declared": "yes"},
					"transitions": map[string]any{"next": "b"},
				},
				"b": map[string]any{"action": record},
			})

			state, err := m.SendAndWait(ctx, "next", map[string]any{"user": map[string]any{"id": 7}})
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"declared": "yes", "count": 1}, state.Params)

			state, err = m.SendAndWait(ctx, "next", nil)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"count": 2}, state.Params)

			require.Len(t, seen, 2)
			assert.Equal(t, InitState, seen[0].Name)
			assert.Equal(t, map[string]any{"user": map[string]any{"id": 7}, "scribble": true}, seen[0].Params)
			assert.Equal(t, "a", seen[1].Name)

			// Mutating the argument never leaks into the committed params.
			assert.NotContains(t, state.Params, "scribble")
		})
	}
}

func TestNilResultCarriesParamsForward(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{"transitions": map[string]any{"load": "loaded"}},
				"loaded": map[string]any{
					"action":      returning(map[string]any{"items": []any{1, 2}}),
					"transitions": map[string]any{"noop": "quiet"},
				},
				"quiet": map[string]any{"action": returning(nil)},
			})

			_, err := m.SendAndWait(ctx, "load", nil)
			require.NoError(t, err)

			state, err := m.SendAndWait(ctx, "noop", nil)
			require.NoError(t, err)
			assert.Equal(t, "quiet", state.Name)
			assert.Equal(t, map[string]any{"items": []any{1, 2}}, state.Params)
		})
	}
}

func TestResultMergesIntoTargetParams(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{"transitions": map[string]any{"go": "target"}},
				"target": map[string]any{
					"params": map[string]any{
						"limits": map[string]any{"max": 10, "min": 1},
						"mode":   "draft",
					},
					"action": returning(map[string]any{
						"limits": map[string]any{"max": 99},
						"mode":   "final",
					}),
				},
			})

			state, err := m.SendAndWait(t.Context(), "go", nil)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{
				"limits": map[string]any{"max": 99, "min": 1},
				"mode":   "final",
			}, state.Params)
		})
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			m := newTestMachine(t, kind, endToEndConfig())

			state, err := m.SendAndWait(ctx, "go", nil)
			require.NoError(t, err)

			state.Params["x"] = 1000

			current, err := m.CurrentState(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, current.Params["x"])
		})
	}
}

func TestAmbiguousGuardLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{"transitions": map[string]any{
					"pick": []any{
						map[string]any{"predicate": true, "to": "left"},
						map[string]any{"predicate": true, "to": "right"},
					},
					"safe": "left",
				}},
				"left":  map[string]any{},
				"right": map[string]any{},
			})

			_, err := m.SendAndWait(ctx, "pick", nil)
			require.ErrorIs(t, err, ErrAmbiguousGuard)

			state, err := m.CurrentState(ctx)
			require.NoError(t, err)
			assert.Equal(t, InitState, state.Name)

			state, err = m.SendAndWait(ctx, "safe", nil)
			require.NoError(t, err)
			assert.Equal(t, "left", state.Name)
		})
	}
}

func TestGuardedTransition(t *testing.T) {
	t.Parallel()

	registry := NewRegistry().
		RegisterPredicate("adult", func(_ context.Context, s Snapshot) bool {
			age, _ := s.Params["age"].(int)

			return age >= 18
		}).
		RegisterPredicate("minor", func(_ context.Context, s Snapshot) bool {
			age, _ := s.Params["age"].(int)

			return age < 18
		}).
		RegisterAction("remember", func(_ context.Context, prev Snapshot) (map[string]any, error) {
			return prev.Params, nil
		})

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{
					"action": "remember",
					"transitions": map[string]any{
						"check": []any{
							map[string]any{"predicate": "adult", "to": "welcome"},
							map[string]any{"predicate": "minor", "to": "denied"},
						},
						"restart": "init",
					},
				},
				"welcome": map[string]any{},
				"denied":  map[string]any{"transitions": map[string]any{"restart": "init"}},
			}, WithInvoker(registry))

			// Guards see the committed params of the current state.
			state, err := m.SendAndWait(ctx, "restart", map[string]any{"age": 12})
			require.NoError(t, err)
			assert.Equal(t, InitState, state.Name)

			state, err = m.SendAndWait(ctx, "check", nil)
			require.NoError(t, err)
			assert.Equal(t, "denied", state.Name)

			_, err = m.SendAndWait(ctx, "restart", map[string]any{"age": 30})
			require.NoError(t, err)

			state, err = m.SendAndWait(ctx, "check", nil)
			require.NoError(t, err)
			assert.Equal(t, "welcome", state.Name)
		})
	}
}

func TestNoGuardMatchedIsRejected(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{"transitions": map[string]any{
					"go": []any{map[string]any{"predicate": false, "to": "a"}},
				}},
				"a": map[string]any{},
			})

			_, err := m.SendAndWait(t.Context(), "go", nil)
			require.ErrorIs(t, err, ErrTransitionRejected)
			require.ErrorIs(t, err, ErrNoGuardMatched)
		})
	}
}

func TestUndeclaredTargetState(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			m := newTestMachine(t, kind, RawConfig{
				"init": map[string]any{"transitions": map[string]any{"go": "ghost"}},
			})

			_, err := m.SendAndWait(t.Context(), "go", nil)
			require.ErrorIs(t, err, ErrConfiguration)
			require.ErrorIs(t, err, ErrStateNotFound)
		})
	}
}

func TestReinitializeResetsProgress(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			m := newTestMachine(t, kind, endToEndConfig())

			_, err := m.SendAndWait(ctx, "go", nil)
			require.NoError(t, err)

			require.NoError(t, m.Initialize(ctx))

			state, err := m.CurrentState(ctx)
			require.NoError(t, err)
			assert.Equal(t, Snapshot{Name: InitState, Params: map[string]any{}}, state)

			// mid had no declared params, so the earlier result is gone.
			state, err = m.SendAndWait(ctx, "go", nil)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"x": 1}, state.Params)
		})
	}
}

func TestExtendTakesEffectOnInitialize(t *testing.T) {
	t.Parallel()

	for _, kind := range strategies {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			m := newTestMachine(t, kind, endToEndConfig())

			m.Extend(RawConfig{
				"init":     map[string]any{"transitions": map[string]any{"shortcut": "end"}},
				"detached": map[string]any{},
			})

			ok, err := m.HasMessage(ctx, "shortcut")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, m.Initialize(ctx))

			available, err := m.Available(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"go", "shortcut"}, available)

			states, err := m.States(ctx)
			require.NoError(t, err)
			assert.Contains(t, states, "detached")
		})
	}
}

func TestConfigSource(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	source := &staticSource{fragment: RawConfig{
		"mid": map[string]any{"transitions": map[string]any{"rewind": "init"}},
	}}

	m := newTestMachine(t, StrategyDefault, endToEndConfig(), WithSource(source))
	assert.Equal(t, StrategySerialized, m.Strategy())
	assert.Equal(t, 1, source.calls)

	_, err := m.SendAndWait(ctx, "go", nil)
	require.NoError(t, err)

	state, err := m.SendAndWait(ctx, "rewind", nil)
	require.NoError(t, err)
	assert.Equal(t, InitState, state.Name)
}

func TestConfigSourceFailureLeavesMachineUninitialized(t *testing.T) {
	t.Parallel()

	errOffline := errors.New("offline")
	source := &staticSource{err: errOffline}

	m := newUninitialized(t, StrategySerialized, endToEndConfig(), WithSource(source))

	err := m.Initialize(t.Context())
	require.ErrorIs(t, err, errOffline)

	_, err = m.CurrentState(t.Context())
	require.ErrorIs(t, err, ErrUninitialized)

	source.err = nil

	require.NoError(t, m.Initialize(t.Context()))
}
