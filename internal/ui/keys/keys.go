package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the application
type KeyMap struct {
	Quit         key.Binding
	Help         key.Binding
	Search       key.Binding
	Tab          key.Binding
	ShiftTab     key.Binding
	Enter        key.Binding
	Escape       key.Binding
	Up           key.Binding
	Down         key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	Home         key.Binding
	End          key.Binding
	Tab1         key.Binding
	Tab2         key.Binding
	Tab3         key.Binding
	Tab4         key.Binding
	ToggleFollow key.Binding
	Clear        key.Binding
	Reconnect    key.Binding
	Refresh      key.Binding
	Insert       key.Binding
	ExitInsert   key.Binding
}

// bind builds a binding whose help shows label and desc
func bind(label, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:         bind("q", "quit", "q", "ctrl+c"),
		Help:         bind("?", "help", "?"),
		Search:       bind("/", "filter logs", "/"),
		Tab:          bind("tab", "next pane", "tab"),
		ShiftTab:     bind("shift+tab", "prev pane", "shift+tab"),
		Enter:        bind("enter", "select", "enter"),
		Escape:       bind("esc", "back/close", "esc"),
		Up:           bind("k/up", "up", "up", "k"),
		Down:         bind("j/down", "down", "down", "j"),
		PageUp:       bind("pgup", "page up", "pgup", "ctrl+u"),
		PageDown:     bind("pgdown", "page down", "pgdown", "ctrl+d"),
		Home:         bind("g/home", "top", "home", "g"),
		End:          bind("G/end", "bottom", "end", "G"),
		Tab1:         bind("1", "Overview", "1"),
		Tab2:         bind("2", "Logs", "2"),
		Tab3:         bind("3", "Terminal", "3"),
		Tab4:         bind("4", "Build", "4"),
		ToggleFollow: bind("f", "toggle follow", "f"),
		Clear:        bind("c", "clear", "c"),
		Reconnect:    bind("r", "reconnect", "r"),
		Refresh:      bind("R", "refresh apps", "R"),
		Insert:       bind("i", "type into terminal", "i"),
		ExitInsert:   bind("ctrl+]", "leave terminal", "ctrl+]"),
	}
}

// ShortHelp returns keybindings for the short help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help, k.Search, k.Tab}
}

// FullHelp returns keybindings for the expanded help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Tab, k.ShiftTab, k.Enter, k.Escape},
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4},
		{k.ToggleFollow, k.Clear, k.Reconnect, k.Refresh},
		{k.Search, k.Insert, k.Help, k.Quit},
	}
}
