package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Trigger   key.Binding
	Recapture key.Binding
	Submit    key.Binding
	Model     key.Binding
	FullDoc   key.Binding
	Copy      key.Binding
	Switch    key.Binding
	ClosePane key.Binding
	Help      key.Binding
	Back      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Trigger: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "analyze selection"),
		),
		Recapture: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "send selection"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "analyze"),
		),
		Model: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "model"),
		),
		FullDoc: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", "full document"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy"),
		),
		Switch: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "code/result"),
		),
		ClosePane: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("ctrl+w", "close panel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// homeKeys is the help row when no panel is open.
type homeKeys keyMap

func (k homeKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Trigger, k.Model, k.Help, k.Quit}
}

func (k homeKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Trigger, k.Recapture, k.Model}, {k.Help, k.Back, k.Quit}}
}

// panelKeys is the help row while the panel is open.
type panelKeys keyMap

func (k panelKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Model, k.Switch, k.FullDoc, k.Copy, k.ClosePane}
}

func (k panelKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Model, k.FullDoc},
		{k.Switch, k.Copy, k.Recapture},
		{k.ClosePane, k.Back, k.Quit},
	}
}
