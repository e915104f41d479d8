package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/rivetr/rivetr-console/internal/stream"
	"github.com/rivetr/rivetr-console/internal/ui/styles"
)

// TerminalView renders the output of an interactive shell. Escape sequences
// are stripped; carriage returns and backspaces are applied to the text.
type TerminalView struct {
	viewport viewport.Model
	width    int
	height   int
}

// NewTerminalView creates a new terminal view
func NewTerminalView(width, height int) *TerminalView {
	return &TerminalView{
		viewport: viewport.New(width, height),
		width:    width,
		height:   height,
	}
}

// SetSize updates the view dimensions
func (v *TerminalView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width
	v.viewport.Height = height
}

// Size returns the remote terminal size in columns and rows
func (v *TerminalView) Size() (int, int) {
	return v.width, v.height
}

// SetEntries re-renders the screen from a buffer snapshot
func (v *TerminalView) SetEntries(entries []stream.Entry) {
	v.viewport.SetContent(RenderTerminal(entries))
	v.viewport.GotoBottom()
}

// Update forwards scroll keys to the viewport
func (v *TerminalView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return cmd
}

// View renders the terminal view
func (v *TerminalView) View() string {
	return v.viewport.View()
}

// RenderTerminal flattens terminal output into display lines. Consecutive
// output entries are joined before escape sequences are stripped, since a
// sequence may be split across frames.
func RenderTerminal(entries []stream.Entry) string {
	var lines []string
	var cur []rune
	var out strings.Builder
	cr := false

	flush := func() {
		lines = append(lines, string(cur))
		cur = cur[:0]
	}

	apply := func() {
		for _, r := range ansi.Strip(out.String()) {
			if cr && r != '\n' {
				// A lone CR returns to column 0
				cur = cur[:0]
			}
			cr = false
			switch r {
			case '\n':
				flush()
			case '\r':
				cr = true
			case '\b':
				if len(cur) > 0 {
					cur = cur[:len(cur)-1]
				}
			case '\a':
			default:
				cur = append(cur, r)
			}
		}
		out.Reset()
	}

	for _, e := range entries {
		switch e.Kind {
		case stream.EntryInfo, stream.EntryError:
			apply()
			if len(cur) > 0 {
				flush()
			}
			style := styles.LogInfoLine
			if e.Kind == stream.EntryError {
				style = styles.LogError
			}
			lines = append(lines, style.Render("-- "+e.Message))
		default:
			out.WriteString(e.Message)
		}
	}
	apply()
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return strings.Join(lines, "\n")
}

// KeyInput maps a key press to the bytes a terminal would send. It reports
// false for keys with no terminal meaning.
func KeyInput(msg tea.KeyMsg) (string, bool) {
	var out string
	switch msg.Type {
	case tea.KeyRunes:
		out = string(msg.Runes)
	case tea.KeySpace:
		out = " "
	case tea.KeyUp:
		out = "\x1b[A"
	case tea.KeyDown:
		out = "\x1b[B"
	case tea.KeyRight:
		out = "\x1b[C"
	case tea.KeyLeft:
		out = "\x1b[D"
	case tea.KeyHome:
		out = "\x1b[H"
	case tea.KeyEnd:
		out = "\x1b[F"
	case tea.KeyDelete:
		out = "\x1b[3~"
	case tea.KeyPgUp:
		out = "\x1b[5~"
	case tea.KeyPgDown:
		out = "\x1b[6~"
	case tea.KeyShiftTab:
		out = "\x1b[Z"
	default:
		// Control keys carry their byte value as the key type
		if (msg.Type >= 0 && msg.Type < 32) || msg.Type == 127 {
			out = string(rune(msg.Type))
		} else {
			return "", false
		}
	}
	if msg.Alt {
		out = "\x1b" + out
	}
	return out, true
}
