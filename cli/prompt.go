package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// QuitItem is the first entry of every message selection.
const QuitItem = "[Quit]"

// ErrQuit is returned when the user picks QuitItem or interrupts a prompt.
var ErrQuit = errors.New("quit")

// Prompter asks the user for the next message and its params.
type Prompter struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// SelectMessage lets the user pick one of the available messages.
func (p *Prompter) SelectMessage(state string, messages []string) (string, error) {
	items := append([]string{QuitItem}, messages...)

	sel := &promptui.Select{
		Label: "Send from " + state,
		Items: items,
		Searcher: func(input string, index int) bool {
			if index == 0 || input == "" {
				return false
			}

			return strings.HasPrefix(items[index], input)
		},
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}

	idx, value, err := sel.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", ErrQuit
		}

		return "", err
	}

	if idx == 0 {
		return "", ErrQuit
	}

	return value, nil
}

// PromptParams asks for optional space-separated key=value pairs.
func (p *Prompter) PromptParams() (map[string]any, error) {
	prompt := promptui.Prompt{
		Label: "Params (key=value ..., empty for none)",
		Validate: func(s string) error {
			_, err := ParseParams(strings.Fields(s))

			return err
		},
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}

	txt, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil, ErrQuit
		}

		return nil, err
	}

	return ParseParams(strings.Fields(txt))
}
