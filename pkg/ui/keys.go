package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	NextFilter key.Binding
	PrevFilter key.Binding
	Cancel     key.Binding
	Delete     key.Binding
	Review     key.Binding
	Pause      key.Binding
	PauseAll   key.Binding
	ResumeAll  key.Binding
	Clear      key.Binding
	Quit       key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	NextFilter: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next filter")),
	PrevFilter: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous filter")),
	Cancel:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
	Delete:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel and delete data")),
	Review:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "mark reviewed")),
	Pause:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
	PauseAll:   key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "pause all")),
	ResumeAll:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "resume all")),
	Clear:      key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear finished")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.NextFilter, k.Cancel, k.Delete, k.Pause, k.PauseAll, k.ResumeAll, k.Clear, k.Review, k.Quit}
}
