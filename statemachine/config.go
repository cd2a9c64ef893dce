package statemachine

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"sync"

	"facette.io/natsort"
	"github.com/amp-labs/fsm/merge"
	"gopkg.in/yaml.v3"
)

const keyParams = "params"

// Configuration compiles a RawConfig into a state table, a transition table
// and the message alphabet. It is safe for concurrent readers; Extend and
// Configure must not race with in-flight transitions.
type Configuration struct {
	mu          sync.RWMutex
	raw         RawConfig
	dirty       bool
	compiled    bool
	states      map[string]State
	transitions map[string]map[string]Edge
	messages    []string
	alphabet    map[string]struct{}
}

// NewConfiguration creates an uncompiled configuration. The raw document is
// copied, later changes to it are not observed.
func NewConfiguration(raw RawConfig) *Configuration {
	return &Configuration{
		raw:         merge.Clone(raw),
		dirty:       true,
		states:      make(map[string]State),
		transitions: make(map[string]map[string]Edge),
		alphabet:    make(map[string]struct{}),
	}
}

// Extend deep-merges fragment into the raw configuration. The change becomes
// visible after the next Configure (Initialize runs it when needed).
func (c *Configuration) Extend(fragment RawConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.raw = merge.Deep(c.raw, fragment)
	c.dirty = true
}

// Raw returns a copy of the uncompiled configuration.
func (c *Configuration) Raw() RawConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return merge.Clone(c.raw)
}

// Compiled reports whether Configure has succeeded at least once.
func (c *Configuration) Compiled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.compiled
}

// Dirty reports whether the raw configuration changed since the last Configure.
func (c *Configuration) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.dirty
}

type parsedState struct {
	state  State
	edges  map[string]Edge
	order  []string
	params map[string]any
}

// Configure compiles the raw configuration. Results accumulate into the
// existing tables, so running it again after Extend adds states, messages and
// edges (replacing edges declared for the same state and message). The whole
// document is validated before anything is committed.
func (c *Configuration) Configure() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.raw[InitState]; !ok {
		return fmt.Errorf("%w: %w", ErrConfiguration, ErrMissingInitState)
	}

	names := slices.Collect(maps.Keys(c.raw))
	natsort.Sort(names)

	parsed := make([]parsedState, 0, len(names))

	for _, name := range names {
		ps, err := parseState(name, c.raw[name])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, WrapStateError(name, err))
		}

		parsed = append(parsed, ps)
	}

	for _, ps := range parsed {
		existing, found := c.states[ps.state.Name]
		if !found {
			existing = State{Name: ps.state.Name}
		}

		if ps.state.Action != nil {
			existing.Action = ps.state.Action
		}

		if ps.params != nil {
			existing.Params = merge.Deep(existing.Params, ps.params)
		}

		if len(ps.state.Attributes) > 0 {
			existing.Attributes = merge.Deep(existing.Attributes, ps.state.Attributes)
		}

		c.states[ps.state.Name] = existing

		edges, ok := c.transitions[ps.state.Name]
		if !ok {
			edges = make(map[string]Edge, len(ps.edges))
			c.transitions[ps.state.Name] = edges
		}

		for _, message := range ps.order {
			if _, seen := c.alphabet[message]; !seen {
				c.alphabet[message] = struct{}{}
				c.messages = append(c.messages, message)
			}

			edges[message] = ps.edges[message]
		}
	}

	c.compiled = true
	c.dirty = false

	return nil
}

// parseState turns one raw state object into its compiled parts.
func parseState(name string, raw any) (parsedState, error) {
	ps := parsedState{
		state: State{Name: name},
		edges: map[string]Edge{},
	}

	if raw == nil {
		return ps, nil
	}

	obj, ok := toMap(raw)
	if !ok {
		return ps, fmt.Errorf("state object must be a mapping, got %T", raw)
	}

	for key, val := range obj {
		switch key {
		case keyAction:
			ps.state.Action = val
		case keyParams:
			params, ok := toMap(val)
			if !ok && val != nil {
				return ps, fmt.Errorf("params must be a mapping, got %T", val)
			}

			ps.params = params
		case keyTransitions:
		default:
			if ps.state.Attributes == nil {
				ps.state.Attributes = map[string]any{}
			}

			ps.state.Attributes[key] = val
		}
	}

	rawTransitions, declared := obj[keyTransitions]
	if !declared || rawTransitions == nil {
		return ps, nil
	}

	transitions, ok := toMap(rawTransitions)
	if !ok {
		if _, isMap := rawTransitions.(map[any]any); isMap {
			return ps, errors.New("message names must be strings or scalars")
		}

		return ps, fmt.Errorf("transitions must be a mapping, got %T", rawTransitions)
	}

	ps.order = slices.Collect(maps.Keys(transitions))
	natsort.Sort(ps.order)

	for _, message := range ps.order {
		edge, err := parseEdge(transitions[message])
		if err != nil {
			return ps, fmt.Errorf("message %q: %w", message, err)
		}

		ps.edges[message] = edge
	}

	return ps, nil
}

// parseEdge accepts the edge shapes produced by Go literals and by decoders.
func parseEdge(raw any) (Edge, error) {
	switch edge := raw.(type) {
	case string:
		if edge == "" {
			return Edge{}, errors.New("empty target state")
		}

		return Edge{To: edge}, nil
	case Edge:
		if edge.To == "" && !edge.IsGuarded() {
			return Edge{}, errors.New("edge has neither a target nor guards")
		}

		return edge, nil
	case []Guard:
		return guardedEdge(edge)
	case []map[string]any:
		guards := make([]Guard, 0, len(edge))

		for i, item := range edge {
			guard, err := parseGuard(item)
			if err != nil {
				return Edge{}, fmt.Errorf("guard %d: %w", i, err)
			}

			guards = append(guards, guard)
		}

		return guardedEdge(guards)
	case []any:
		guards := make([]Guard, 0, len(edge))

		for i, item := range edge {
			guard, err := parseGuard(item)
			if err != nil {
				return Edge{}, fmt.Errorf("guard %d: %w", i, err)
			}

			guards = append(guards, guard)
		}

		return guardedEdge(guards)
	default:
		return Edge{}, fmt.Errorf("unsupported edge type %T", raw)
	}
}

func parseGuard(raw any) (Guard, error) {
	if guard, ok := raw.(Guard); ok {
		return guard, nil
	}

	obj, ok := toMap(raw)
	if !ok {
		return Guard{}, fmt.Errorf("guard must be a mapping, got %T", raw)
	}

	to, _ := obj[keyTo].(string)

	return Guard{Predicate: obj[keyPredicate], To: to}, nil
}

func guardedEdge(guards []Guard) (Edge, error) {
	if len(guards) == 0 {
		return Edge{}, errors.New("guarded edge has no guards")
	}

	for i, guard := range guards {
		if guard.To == "" {
			return Edge{}, fmt.Errorf("guard %d: missing target state", i)
		}

		if guard.Predicate == nil {
			return Edge{}, fmt.Errorf("guard %d: missing predicate", i)
		}
	}

	return Edge{Guards: slices.Clone(guards)}, nil
}

func toMap(v any) (map[string]any, bool) {
	return merge.AsMap(v)
}

// States returns the names of all compiled states in natural sort order.
func (c *Configuration) States() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := slices.Collect(maps.Keys(c.states))
	natsort.Sort(names)

	return names
}

// State returns the compiled state called name.
func (c *Configuration) State(name string) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.states[name]

	return state, ok
}

// Messages returns the alphabet in first-seen order.
func (c *Configuration) Messages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.messages)
}

// HasMessage reports whether message is part of the alphabet.
func (c *Configuration) HasMessage(message string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.alphabet[message]

	return ok
}

// Edge returns the edge for message leaving state.
func (c *Configuration) Edge(state, message string) (Edge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	edge, ok := c.transitions[state][message]

	return edge, ok
}

// Edges returns a copy of the outgoing edges of state (empty for terminal states).
func (c *Configuration) Edges(state string) map[string]Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.transitions[state])
}

// OutgoingMessages returns the messages with an edge leaving state, in
// natural sort order.
func (c *Configuration) OutgoingMessages(state string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := slices.Collect(maps.Keys(c.transitions[state]))
	natsort.Sort(out)

	return out
}

// ParseConfig decodes a YAML or JSON machine document.
func ParseConfig(data []byte) (RawConfig, error) {
	var raw map[string]any

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse document: %w", ErrConfiguration, err)
	}

	return merge.Clone(raw), nil
}

// LoadConfig reads and decodes a machine document from the filesystem.
func LoadConfig(path string) (RawConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return ParseConfig(data)
}

// LoadConfigFromFS reads and decodes a machine document from fsys, e.g. an embed.FS.
func LoadConfigFromFS(fsys fs.FS, path string) (RawConfig, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return ParseConfig(data)
}
