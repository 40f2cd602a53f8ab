// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the editor keybindings.
type KeyMap struct {
	// Palette list
	PaletteUp   key.Binding
	PaletteDown key.Binding
	SetActive   key.Binding

	// Grid cursor
	CursorUp    key.Binding
	CursorDown  key.Binding
	CursorLeft  key.Binding
	CursorRight key.Binding
	Paint       key.Binding
	Highlight   key.Binding

	// Palette edits
	Undo          key.Binding
	MergeSource   key.Binding
	MergeInto     key.Binding
	Delete        key.Binding
	Replace       key.Binding
	SimplifyMore  key.Binding
	SimplifyLess  key.Binding
	BlackAndWhite key.Binding

	// Generation
	ZoomIn     key.Binding
	ZoomOut    key.Binding
	Regenerate key.Binding
	Reload     key.Binding
	Save       key.Binding

	// General
	Clusters key.Binding
	Logs     key.Binding
	Help     key.Binding
	Escape   key.Binding
	Quit     key.Binding
}

// PromptKeyMap is active while a text prompt has focus.
type PromptKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// Editor is the keymap used by the editor view.
var Editor = DefaultKeyMap()

// Prompt is the keymap used by text prompts.
var Prompt = PromptKeyMap{
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PaletteUp: key.NewBinding(
			key.WithKeys("k"),
			key.WithHelp("k", "previous color"),
		),
		PaletteDown: key.NewBinding(
			key.WithKeys("j"),
			key.WithHelp("j", "next color"),
		),
		SetActive: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "use color"),
		),

		CursorUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "cursor up"),
		),
		CursorDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "cursor down"),
		),
		CursorLeft: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "cursor left"),
		),
		CursorRight: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "cursor right"),
		),
		Paint: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "paint cell"),
		),
		Highlight: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "highlight row"),
		),

		Undo: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "undo"),
		),
		MergeSource: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "merge from"),
		),
		MergeInto: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "merge into"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete color"),
		),
		Replace: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "replace color"),
		),
		SimplifyMore: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "simplify more"),
		),
		SimplifyLess: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "simplify less"),
		),
		BlackAndWhite: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "black & white"),
		),

		ZoomIn: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "zoom in"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "zoom out"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "regenerate"),
		),
		Reload: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reload image"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save settings"),
		),

		Clusters: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "similar colors"),
		),
		Logs: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "logs"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Paint, k.Undo, k.Delete, k.SimplifyMore, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PaletteUp, k.PaletteDown, k.SetActive, k.CursorUp, k.CursorDown, k.CursorLeft, k.CursorRight},
		{k.Paint, k.Highlight, k.Undo, k.MergeSource, k.MergeInto, k.Delete, k.Replace},
		{k.SimplifyMore, k.SimplifyLess, k.BlackAndWhite, k.ZoomIn, k.ZoomOut, k.Regenerate},
		{k.Reload, k.Save, k.Clusters, k.Logs, k.Help, k.Quit},
	}
}

// ShortHelp implements help.KeyMap.
func (k PromptKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

// FullHelp implements help.KeyMap.
func (k PromptKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
