package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextCard   key.Binding
	PrevCard   key.Binding
	PlayCard   key.Binding
	Toggle     key.Binding
	Next       key.Binding
	Previous   key.Binding
	Shuffle    key.Binding
	Repeat     key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Seek       key.Binding
	Close      key.Binding
	Filter     key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextCard: key.NewBinding(
			key.WithKeys("tab", "down", "j"),
			key.WithHelp("tab/↓", "next card"),
		),
		PrevCard: key.NewBinding(
			key.WithKeys("shift+tab", "up", "k"),
			key.WithHelp("shift+tab/↑", "prev card"),
		),
		PlayCard: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "play card"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Next: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "next"),
		),
		Previous: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "previous"),
		),
		Shuffle: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "shuffle"),
		),
		Repeat: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "repeat"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+/-", "volume"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("-", "_"),
		),
		Seek: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("0-9", "seek"),
		),
		Close: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close panel"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Next, k.Previous, k.Shuffle, k.Repeat, k.VolumeUp, k.Filter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextCard, k.PrevCard, k.PlayCard},
		{k.Toggle, k.Next, k.Previous, k.Seek},
		{k.Shuffle, k.Repeat, k.VolumeUp, k.Close},
		{k.Filter, k.Quit},
	}
}
