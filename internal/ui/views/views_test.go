package views

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rivetr/rivetr-console/internal/stream"
	"github.com/stretchr/testify/assert"
)

func TestKeyInput(t *testing.T) {
	cases := []struct {
		name string
		msg  tea.KeyMsg
		want string
	}{
		{"printable runes", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ls")}, "ls"},
		{"space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, " "},
		{"enter as carriage return", tea.KeyMsg{Type: tea.KeyEnter}, "\r"},
		{"tab", tea.KeyMsg{Type: tea.KeyTab}, "\t"},
		{"backspace as DEL", tea.KeyMsg{Type: tea.KeyBackspace}, "\x7f"},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, "\x03"},
		{"ctrl+d", tea.KeyMsg{Type: tea.KeyCtrlD}, "\x04"},
		{"escape", tea.KeyMsg{Type: tea.KeyEsc}, "\x1b"},
		{"arrow up", tea.KeyMsg{Type: tea.KeyUp}, "\x1b[A"},
		{"arrow left", tea.KeyMsg{Type: tea.KeyLeft}, "\x1b[D"},
		{"delete", tea.KeyMsg{Type: tea.KeyDelete}, "\x1b[3~"},
		{"alt prefix", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b"), Alt: true}, "\x1bb"},
	}
	for _, tc := range cases {
		t.Run("Should encode "+tc.name, func(t *testing.T) {
			got, ok := KeyInput(tc.msg)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("Should reject keys without a terminal encoding", func(t *testing.T) {
		_, ok := KeyInput(tea.KeyMsg{Type: tea.KeyF5})
		assert.False(t, ok)
	})
}

func output(s string) stream.Entry {
	return stream.Entry{Kind: stream.EntryOutput, Message: s}
}

func TestRenderTerminal(t *testing.T) {
	t.Run("Should join output split across frames", func(t *testing.T) {
		got := RenderTerminal([]stream.Entry{output("/app $ l"), output("s\r\n"), output("main.go\r\n/app $ ")})
		assert.Equal(t, "/app $ ls\nmain.go\n/app $ ", got)
	})

	t.Run("Should apply backspace erasure", func(t *testing.T) {
		got := RenderTerminal([]stream.Entry{output("lx"), output("\b \b"), output("s")})
		assert.Equal(t, "ls", got)
	})

	t.Run("Should overwrite the line on a lone carriage return", func(t *testing.T) {
		got := RenderTerminal([]stream.Entry{output("50%\r"), output("100%\n")})
		assert.Equal(t, "100%", got)
	})

	t.Run("Should strip escape sequences", func(t *testing.T) {
		got := RenderTerminal([]stream.Entry{output("\x1b[32mok\x1b[0m\n")})
		assert.Equal(t, "ok", got)
	})

	t.Run("Should strip escape sequences split across frames", func(t *testing.T) {
		got := RenderTerminal([]stream.Entry{output("\x1b[3"), output("2mok\x1b["), output("0m\n$ ")})
		assert.Equal(t, "ok\n$ ", got)
	})

	t.Run("Should put status lines on their own row", func(t *testing.T) {
		got := RenderTerminal([]stream.Entry{
			output("$ "),
			{Kind: stream.EntryInfo, Message: "Session ended"},
		})
		assert.Contains(t, got, "$ \n")
		assert.Contains(t, got, "Session ended")
	})
}

func logEntry(msg string) stream.Entry {
	return stream.Entry{Kind: stream.EntryLog, Message: msg}
}

func TestLogsView(t *testing.T) {
	t.Run("Should filter case-insensitively", func(t *testing.T) {
		v := NewLogsView(80, 10)
		v.SetEntries([]stream.Entry{logEntry("GET /health"), logEntry("POST /Login"), logEntry("GET /login")})
		v.SetFilter("login")
		assert.Equal(t, 2, v.VisibleCount())
		assert.NotContains(t, v.View(), "health")

		v.ClearFilter()
		assert.Equal(t, 3, v.VisibleCount())
	})

	t.Run("Should stay at the bottom while following", func(t *testing.T) {
		v := NewLogsView(80, 2)
		entries := make([]stream.Entry, 0, 10)
		for i := 0; i < 10; i++ {
			entries = append(entries, logEntry(string(rune('a'+i))))
		}
		v.SetEntries(entries)
		assert.True(t, v.IsFollowing())
		assert.Contains(t, v.View(), "j")

		v.ToggleFollow()
		v.ScrollToTop()
		v.SetEntries(append(entries, logEntry("k")))
		assert.False(t, v.IsFollowing())
		assert.Contains(t, v.View(), "a")
	})

	t.Run("Should mark synthetic lines", func(t *testing.T) {
		v := NewLogsView(80, 5)
		v.SetEntries([]stream.Entry{
			{Kind: stream.EntryInfo, Message: "Connected to container abc"},
			{Kind: stream.EntryError, Message: "app not running"},
		})
		view := v.View()
		assert.Contains(t, view, "-- Connected to container abc")
		assert.Contains(t, view, "!! app not running")
	})
}

func TestFormatTimestamp(t *testing.T) {
	t.Run("Should render RFC 3339 as wall time", func(t *testing.T) {
		ts := time.Date(2024, 5, 1, 12, 30, 45, 0, time.Local).Format(time.RFC3339Nano)
		assert.Equal(t, "12:30:45", FormatTimestamp(ts))
	})

	t.Run("Should pass other values through", func(t *testing.T) {
		assert.Equal(t, "yesterday", FormatTimestamp("yesterday"))
		assert.Empty(t, FormatTimestamp(""))
	})
}

func TestBadge(t *testing.T) {
	cases := []struct {
		phase stream.Phase
		want  string
	}{
		{stream.PhaseOpen, "Live"},
		{stream.PhaseReconnecting, "Reconnecting"},
		{stream.PhaseFailed, "Error"},
		{stream.PhaseIdle, "Disconnected"},
		{stream.PhaseConnecting, "Disconnected"},
	}
	for _, tc := range cases {
		t.Run("Should label "+tc.phase.String(), func(t *testing.T) {
			assert.Contains(t, Badge(stream.State{Phase: tc.phase}, ""), tc.want)
		})
	}

	t.Run("Should offer manual reconnect after giving up", func(t *testing.T) {
		st := stream.State{Phase: stream.PhaseFailed, Err: stream.MaxAttemptsMessage}
		detail := StatusDetail(st, 10)
		assert.Contains(t, detail, stream.MaxAttemptsMessage)
		assert.Contains(t, detail, "press r to reconnect")
	})

	t.Run("Should show the pending retry", func(t *testing.T) {
		st := stream.State{Phase: stream.PhaseReconnecting, Attempt: 2, RetryIn: 2 * time.Second, Err: "connection lost"}
		detail := StatusDetail(st, 10)
		assert.Contains(t, detail, "attempt 2/10 in 2s")
		assert.Contains(t, detail, "connection lost")
	})
}
