// Package ui provides the Bubble Tea TUI for the arbitrage pipeline.
package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	Quit          key.Binding
	Pause         key.Binding
	Clear         key.Binding
	ClearErrors   key.Binding
	Up            key.Binding
	Down          key.Binding
	EmergencyStop key.Binding
	ResetBreaker  key.Binding
	Help          key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		ClearErrors: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear errors"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		EmergencyStop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "emergency stop"),
		),
		ResetBreaker: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset breaker"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Pause, k.EmergencyStop, k.ResetBreaker, k.Help}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Pause, k.Clear, k.ClearErrors},
		{k.Up, k.Down},
		{k.EmergencyStop, k.ResetBreaker, k.Help},
	}
}
