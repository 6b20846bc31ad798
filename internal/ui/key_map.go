package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up          key.Binding
	down        key.Binding
	enter       key.Binding
	downloadAll key.Binding
	back        key.Binding
	yes         key.Binding
	no          key.Binding
	restart     key.Binding
	quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		downloadAll: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download all")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "download")),
		no:          key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		restart:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// bindings lists the help entries shown under a view.
func (k keyMap) bindings(view ViewState) []key.Binding {
	switch view {
	case PlaylistListView:
		return []key.Binding{k.up, k.down, k.enter, k.quit}
	case SongListView:
		return []key.Binding{k.downloadAll, k.back, k.quit}
	case ConfirmView:
		return []key.Binding{k.yes, k.no}
	case ResultView:
		return []key.Binding{k.restart, k.quit}
	default:
		return []key.Binding{k.quit}
	}
}
