package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/nzaccagnino/go-notepad/internal/i18n"
)

type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Edit   key.Binding
	Escape key.Binding
	Save   key.Binding
	New    key.Binding
	Rename key.Binding
	Close  key.Binding
	Sync   key.Binding
	Import key.Binding
	Indent key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func NewKeyMap() KeyMap {
	t := i18n.T()
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", t.KeyUp),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", t.KeyDown),
		),
		Edit: key.NewBinding(
			key.WithKeys("i", "enter"),
			key.WithHelp("i/Enter", t.KeyEdit),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", t.KeyEscape),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("Ctrl+S", t.KeySave),
		),
		New: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("Ctrl+N", t.KeyNew),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", t.KeyRename),
		),
		Close: key.NewBinding(
			key.WithKeys("d", "ctrl+w"),
			key.WithHelp("d/Ctrl+W", t.KeyClose),
		),
		Sync: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("Ctrl+Y", t.KeySync),
		),
		Import: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("Ctrl+O", t.KeyImport),
		),
		Indent: key.NewBinding(
			key.WithKeys("tab"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h", "?"),
			key.WithHelp("Ctrl+H/?", t.KeyHelp),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q", "ctrl+c"),
			key.WithHelp("Ctrl+Q", t.KeyQuit),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Edit, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Edit, k.Escape},
		{k.New, k.Rename, k.Close, k.Save},
		{k.Sync, k.Import, k.Help, k.Quit},
	}
}
