package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap is the dashboard keyboard layout. It satisfies help.KeyMap.
type KeyMap struct {
	Quit, Pause, Clear, ClearErrors key.Binding
	Up, Down                        key.Binding
	Logs, Metrics, Help             key.Binding
}

func binding(label, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// DefaultKeyMap returns the bindings the dashboard ships with.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:        binding("q", "quit", "q", "ctrl+c"),
		Pause:       binding("p", "pause feed", "p"),
		Clear:       binding("c", "clear events", "c"),
		ClearErrors: binding("e", "clear errors", "e"),
		Up:          binding("↑/k", "newer", "up", "k"),
		Down:        binding("↓/j", "older", "down", "j"),
		Logs:        binding("l", "logs", "l"),
		Metrics:     binding("m", "stats", "m"),
		Help:        binding("?", "more keys", "?"),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Pause, k.Up, k.Down, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Clear},
		{k.Pause, k.ClearErrors},
		{k.Logs, k.Metrics},
		{k.Help, k.Quit},
	}
}
