package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amp-labs/fsm/merge"
	"gopkg.in/yaml.v3"
)

// ErrInvalidParam is returned for arguments that are not key=value pairs.
var ErrInvalidParam = errors.New("invalid param")

// ParseParams turns key=value pairs into send params. Values are decoded as
// YAML scalars, so "3" is an int and "true" a bool. Dotted keys nest:
// "user.id=7" becomes {"user": {"id": 7}}.
func ParseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := map[string]any{}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q, expected key=value", ErrInvalidParam, pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}

		if value == nil && raw != "" {
			value = raw
		}

		out = merge.Deep(out, nest(strings.Split(key, "."), value))
	}

	return out, nil
}

func nest(path []string, value any) map[string]any {
	if len(path) == 1 {
		return map[string]any{path[0]: value}
	}

	return map[string]any{path[0]: nest(path[1:], value)}
}
