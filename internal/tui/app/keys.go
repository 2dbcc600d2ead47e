package app

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/yamca/yamca/internal/tui/views/help"
)

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Read      key.Binding
	Filter    key.Binding
	Create    key.Binding
	Listen    key.Binding
	Stop      key.Binding
	Delete    key.Binding
	Post      key.Binding
	Profile   key.Binding
	Events    key.Binding
	Help      key.Binding
	Submit    key.Binding
	Complete  key.Binding
	Confirm   key.Binding
	Escape    key.Binding
	Quit      key.Binding
	Interrupt key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "previous topic"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next topic"),
		),
		Read: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "read topic posts"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter topics"),
		),
		Create: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "create topic"),
		),
		Listen: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "listen for topic"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop listening"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "delete topic"),
		),
		Post: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "post to topic"),
		),
		Profile: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "switch profile"),
		),
		Events: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "event log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "complete / toggle new profile"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel / close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit from anywhere"),
		),
	}
}

// HelpSections groups the bindings for the help overlay.
func (k KeyMap) HelpSections() []help.Section {
	return []help.Section{
		{Title: "Topics", Bindings: []key.Binding{k.Up, k.Down, k.Read, k.Filter, k.Create, k.Listen, k.Stop, k.Delete, k.Post}},
		{Title: "Prompts", Bindings: []key.Binding{k.Submit, k.Complete, k.Escape}},
		{Title: "General", Bindings: []key.Binding{k.Profile, k.Events, k.Help, k.Quit, k.Interrupt}},
	}
}
