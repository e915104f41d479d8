package views

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/rivetr/rivetr-console/internal/stream"
	"github.com/rivetr/rivetr-console/internal/ui/styles"
)

// LogsView displays a runtime or build log buffer
type LogsView struct {
	viewport viewport.Model
	entries  []stream.Entry
	filter   string
	follow   bool
	visible  int
	width    int
	height   int
}

// NewLogsView creates a new logs view
func NewLogsView(width, height int) *LogsView {
	vp := viewport.New(width, height)
	return &LogsView{
		viewport: vp,
		entries:  make([]stream.Entry, 0),
		follow:   true,
		width:    width,
		height:   height,
	}
}

// SetSize updates the view dimensions
func (v *LogsView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width
	v.viewport.Height = height
	v.updateContent()
}

// SetEntries replaces the rendered entries with a buffer snapshot
func (v *LogsView) SetEntries(entries []stream.Entry) {
	v.entries = entries
	v.updateContent()
}

// SetFilter sets the search filter
func (v *LogsView) SetFilter(filter string) {
	v.filter = filter
	v.updateContent()
}

// ClearFilter clears the search filter
func (v *LogsView) ClearFilter() {
	v.filter = ""
	v.updateContent()
}

// Filter returns the active filter
func (v *LogsView) Filter() string {
	return v.filter
}

// ScrollToBottom scrolls to the bottom of the log
func (v *LogsView) ScrollToBottom() {
	v.viewport.GotoBottom()
}

// ScrollToTop scrolls to the oldest entry
func (v *LogsView) ScrollToTop() {
	v.viewport.GotoTop()
}

// ToggleFollow toggles follow mode
func (v *LogsView) ToggleFollow() {
	v.SetFollow(!v.follow)
}

// SetFollow enables or disables auto-scroll
func (v *LogsView) SetFollow(follow bool) {
	v.follow = follow
	if follow {
		v.viewport.GotoBottom()
	}
}

// IsFollowing returns whether follow mode is enabled
func (v *LogsView) IsFollowing() bool {
	return v.follow
}

// VisibleCount returns how many entries pass the filter
func (v *LogsView) VisibleCount() int {
	return v.visible
}

// Update forwards scroll keys to the viewport
func (v *LogsView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return cmd
}

func (v *LogsView) updateContent() {
	lines := make([]string, 0, len(v.entries))
	needle := strings.ToLower(v.filter)

	for _, e := range v.entries {
		msg := ansi.Strip(e.Message)
		// Apply filter if set
		if needle != "" && !strings.Contains(strings.ToLower(msg), needle) {
			continue
		}
		lines = append(lines, renderEntry(e, msg))
	}
	v.visible = len(lines)

	v.viewport.SetContent(strings.Join(lines, "\n"))
	if v.follow {
		v.viewport.GotoBottom()
	}
}

func renderEntry(e stream.Entry, msg string) string {
	switch e.Kind {
	case stream.EntryInfo:
		return styles.LogInfoLine.Render("-- " + msg)
	case stream.EntryError:
		return styles.LogError.Render("!! " + msg)
	}

	levelStyle := styles.LogInfo
	switch strings.ToLower(e.Level) {
	case "debug", "trace":
		levelStyle = styles.LogDebug
	case "warn", "warning":
		levelStyle = styles.LogWarn
	case "error", "fatal":
		levelStyle = styles.LogError
	default:
		if e.Stream == "stderr" {
			levelStyle = styles.LogWarn
		}
	}

	line := levelStyle.Render(msg)
	if ts := FormatTimestamp(e.Timestamp); ts != "" {
		line = styles.Muted.Render(ts) + " " + line
	}
	return line
}

// FormatTimestamp renders an RFC 3339 timestamp as local wall time; other
// values are returned unchanged
func FormatTimestamp(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}

// View renders the logs view
func (v *LogsView) View() string {
	return v.viewport.View()
}
