package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send       key.Binding
	NewThread  key.Binding
	Delete     key.Binding
	PrevThread key.Binding
	NextThread key.Binding
	Filter     key.Binding
	Rename     key.Binding
	Prompt     key.Binding
	Cancel     key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	NewThread:  key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new")),
	Delete:     key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "delete")),
	PrevThread: key.NewBinding(key.WithKeys("ctrl+up"), key.WithHelp("ctrl+↑", "prev")),
	NextThread: key.NewBinding(key.WithKeys("ctrl+down"), key.WithHelp("ctrl+↓", "next")),
	Filter:     key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "filter")),
	Rename:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "rename")),
	Prompt:     key.NewBinding(key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4"), key.WithHelp("alt+1..4", "prompt")),
	Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NewThread, k.Delete, k.PrevThread, k.NextThread, k.Filter, k.Rename, k.Prompt, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
