// Package merge provides a pure, recursive merge for string-keyed maps.
//
// Nested map[string]any values are merged key by key. Every other value
// (scalars, slices, funcs, structs) is a leaf: on conflict the right-hand
// operand wins. Neither input is ever mutated, and every nested map in the
// result is a fresh copy, so the result can be modified freely.
package merge

import (
	"fmt"
	"reflect"
)

// Deep returns a new map holding the recursive merge of left and right.
// nil operands behave like empty maps and the result is never nil.
func Deep(left, right map[string]any) map[string]any {
	out := Clone(left)

	for key, rv := range right {
		rm, rightIsMap := AsMap(rv)
		if !rightIsMap {
			out[key] = rv

			continue
		}

		lm, leftIsMap := AsMap(out[key])
		if leftIsMap {
			// out[key] is already a private copy made by Clone.
			out[key] = Deep(lm, rm)
		} else {
			out[key] = Clone(rm)
		}
	}

	return out
}

// Clone copies the map structure of m. Nested maps are copied recursively,
// leaves are shared.
func Clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))

	for key, val := range m {
		if nested, ok := AsMap(val); ok {
			out[key] = Clone(nested)
		} else {
			out[key] = val
		}
	}

	return out
}

// All folds Deep over every map from left to right.
func All(ms ...map[string]any) map[string]any {
	out := map[string]any{}

	for _, m := range ms {
		out = Deep(out, m)
	}

	return out
}

// AsMap recognizes the nested map shapes produced by Go literals and by the
// YAML and JSON decoders. Named map types with string keys and interface
// values (such as a config type declared as map[string]any) count as maps.
// map[any]any is converted when every key is a string or a scalar; scalar
// keys (YAML "1: two") are stringified.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return m, true
	case map[any]any:
		converted := make(map[string]any, len(m))

		for k, val := range m {
			ks, ok := scalarKey(k)
			if !ok {
				return nil, false
			}

			converted[ks] = val
		}

		return converted, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map ||
		rv.Type().Key().Kind() != reflect.String ||
		rv.Type().Elem().Kind() != reflect.Interface ||
		rv.Type().Elem().NumMethod() != 0 {
		return nil, false
	}

	if rv.IsNil() {
		return map[string]any{}, true
	}

	converted := make(map[string]any, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		converted[iter.Key().String()] = iter.Value().Interface()
	}

	return converted, true
}

func scalarKey(k any) (string, bool) {
	switch key := k.(type) {
	case string:
		return key, true
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(key), true
	default:
		return "", false
	}
}
