// Package cli holds the terminal helpers of fsmctl: rendering machine state,
// prompting for messages and parsing key=value params.
package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"facette.io/natsort"
	"github.com/amp-labs/fsm/statemachine"
)

const (
	boxTopLeft     = "╒"
	boxBottomLeft  = "└"
	boxTopRight    = "╕"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	ellipsis       = "…"

	boxPadding      = 2
	truncateReserve = 1

	// DefaultWidth is the box width used when the terminal size is unknown.
	DefaultWidth = 60
)

// RenderSnapshot draws a box with the state name followed by its params,
// one flattened key per line in natural order. Plain disables the box.
func RenderSnapshot(snap statemachine.Snapshot, width int, plain bool) string {
	lines := append([]string{"state: " + snap.Name}, flatten("", snap.Params)...)

	if plain {
		return strings.Join(lines, "\n") + "\n"
	}

	return Box(lines, width)
}

// Box draws lines inside a frame width runes wide. Lines that do not fit are
// truncated with an ellipsis.
func Box(lines []string, width int) string {
	if len(lines) == 0 || width <= boxPadding {
		return ""
	}

	inner := width - boxPadding
	parts := make([]string, 0, len(lines)+2)
	parts = append(parts, boxTopLeft+strings.Repeat(boxTop, inner)+boxTopRight)

	for _, line := range lines {
		parts = append(parts, boxSide+padRight(line, inner)+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n") + "\n"
}

// flatten renders nested params as dotted keys.
func flatten(prefix string, params map[string]any) []string {
	keys := slices.Collect(maps.Keys(params))
	natsort.Sort(keys)

	var out []string

	for _, key := range keys {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}

		if nested, ok := params[key].(map[string]any); ok && len(nested) > 0 {
			out = append(out, flatten(name, nested)...)

			continue
		}

		out = append(out, fmt.Sprintf("  %s = %v", name, params[key]))
	}

	return out
}

func countGraphic(s string) int {
	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}
	}

	return count
}

func truncateGraphic(s string, n int) (string, int) {
	var out strings.Builder

	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}

		if count > n {
			count = n

			break
		}

		out.WriteRune(r)
	}

	return out.String(), count
}

func padRight(text string, width int) string {
	length := countGraphic(text)
	if length > width {
		text, length = truncateGraphic(text, width-truncateReserve)
		text += ellipsis
		length++
	}

	return text + strings.Repeat(" ", max(width-length, 0))
}
