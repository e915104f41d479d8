package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/rivetr/rivetr-console/internal/ui/styles"
	"github.com/rivetr/rivetr-console/internal/ui/views"
)

const leftWidth = 28

// View implements tea.Model
func (a *App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	// Help overlay
	if a.mode == ModeHelp {
		return a.renderHelp()
	}

	return a.renderMainLayout()
}

// streamViewSize is the area left for tab content inside the details pane
func (a *App) streamViewSize() (int, int) {
	w := a.width - leftWidth - 6
	h := a.height - 4 - 3
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	return w, h
}

func (a *App) renderMainLayout() string {
	rightWidth := a.width - leftWidth - 4 // Account for borders
	contentHeight := a.height - 4         // Account for bottom bar and borders

	leftPane := a.renderAppsPane(leftWidth, contentHeight)
	rightPane := a.renderDetailsPane(rightWidth, contentHeight)
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	bottomBar := a.renderBottomBar()

	if a.mode == ModeSearch {
		return lipgloss.JoinVertical(lipgloss.Left, mainContent, a.renderSearchBar(), bottomBar)
	}
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, bottomBar)
}

func (a *App) renderAppsPane(width, height int) string {
	style := styles.PaneBorder
	if a.focusedPane == PaneApps {
		style = styles.FocusedPaneBorder
	}
	style = style.Width(width).Height(height)

	title := "Apps"
	if a.team != "" {
		title += " · " + a.team
	}

	var lines []string
	switch {
	case a.appsErr != nil && len(a.apps) == 0:
		lines = append(lines, styles.LogError.Render(views.ShortError(a.appsErr)))
	case len(a.apps) == 0:
		lines = append(lines, styles.Muted.Render("Loading apps..."))
	default:
		for i, app := range a.apps {
			line := statusDot(app.Status) + " " + app.Name
			if i == a.selectedApp {
				lines = append(lines, styles.SelectedItem.Render(line))
			} else {
				lines = append(lines, styles.UnselectedItem.Render(line))
			}
		}
		if a.appsErr != nil {
			lines = append(lines, "", styles.LogWarn.Render(staleNotice(a.appsAge)))
		}
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render(title),
		strings.Join(lines, "\n"),
	))
}

// staleNotice tells how old the listed apps are after a failed refresh
func staleNotice(age time.Duration) string {
	if age <= 0 {
		return "refresh failed"
	}
	return fmt.Sprintf("refresh failed, %s old", age.Truncate(time.Second))
}

func statusDot(status models.AppStatus) string {
	switch status {
	case models.AppRunning:
		return styles.StatusOK.Render("●")
	case models.AppFailed:
		return styles.StatusDown.Render("●")
	case models.AppBuilding:
		return styles.StatusDegraded.Render("●")
	default:
		return styles.Muted.Render("○")
	}
}

func (a *App) renderDetailsPane(width, height int) string {
	style := styles.PaneBorder
	switch {
	case a.mode == ModeInsert:
		style = styles.InsertPaneBorder
	case a.focusedPane == PaneDetails:
		style = styles.FocusedPaneBorder
	}
	style = style.Width(width).Height(height)

	var content string
	switch a.activeTab {
	case TabOverview:
		content = a.overview.View()
	case TabLogs:
		content = a.renderStreamTab(TabLogs, a.logsView.View())
	case TabTerminal:
		content = a.renderStreamTab(TabTerminal, a.termView.View())
	case TabBuild:
		if _, ok := a.buildTarget(); !ok {
			content = styles.Muted.Render("No deployments yet")
			break
		}
		content = a.renderStreamTab(TabBuild, a.buildView.View())
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, a.renderTabs(), content))
}

func (a *App) renderTabs() string {
	parts := make([]string, 0, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if Tab(i) == a.activeTab {
			parts = append(parts, styles.ActiveTab.Render(label))
		} else {
			parts = append(parts, styles.InactiveTab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// renderStreamTab prefixes body with the connection badge and status line
func (a *App) renderStreamTab(t Tab, body string) string {
	if a.currentApp() == nil {
		return styles.Muted.Render("Select an app")
	}
	st, _ := a.streamState(t)

	header := []string{views.Badge(st, a.spinner.View())}
	if detail := views.StatusDetail(st, a.config.RetryPolicy().Normalized().MaxAttempts); detail != "" {
		header = append(header, detail)
	}
	switch t {
	case TabLogs, TabBuild:
		v := a.activeLogsView()
		if v.IsFollowing() {
			header = append(header, styles.Muted.Render("follow"))
		}
		if f := v.Filter(); f != "" {
			header = append(header, styles.Primary.Render(fmt.Sprintf("/%s (%d)", f, v.VisibleCount())))
		}
		if t == TabBuild {
			header = append(header, styles.Muted.Render(shortID(a.buildFor)))
		}
	case TabTerminal:
		if a.mode == ModeInsert {
			header = append(header, styles.BadgeInsert.Render("INSERT"))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, strings.Join(header, " "), body)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func (a *App) renderBottomBar() string {
	var hints []string
	if a.mode == ModeInsert {
		hints = []string{
			styles.HintKey.Render("ctrl+]") + styles.HintDesc.Render(":leave terminal"),
		}
	} else {
		hints = []string{
			styles.HintKey.Render("q") + styles.HintDesc.Render(":quit"),
			styles.HintKey.Render("?") + styles.HintDesc.Render(":help"),
			styles.HintKey.Render("1-4") + styles.HintDesc.Render(":tabs"),
		}
		if a.activeTab != TabOverview {
			if st, ok := a.streamState(a.activeTab); !ok || st.CanReconnect() {
				hints = append(hints, styles.HintKey.Render("r")+styles.HintDesc.Render(":reconnect"))
			}
			hints = append(hints, styles.HintKey.Render("c")+styles.HintDesc.Render(":clear"))
		}
		if a.activeLogsView() != nil {
			hints = append(hints,
				styles.HintKey.Render("/")+styles.HintDesc.Render(":filter"),
				styles.HintKey.Render("f")+styles.HintDesc.Render(":follow"),
			)
		}
		if a.activeTab == TabTerminal && a.termConnected {
			hints = append(hints, styles.HintKey.Render("i")+styles.HintDesc.Render(":type"))
		}
	}

	return styles.BottomBar.Width(a.width).Render(lipgloss.JoinHorizontal(lipgloss.Left, joinWithSeparator(hints, "  ")...))
}

func (a *App) renderSearchBar() string {
	prompt := styles.InputPrompt.Render("Filter: ")
	return prompt + a.searchInput.View()
}

func (a *App) renderHelp() string {
	help := styles.HelpTitle.Render("rivetr-console Help") + "\n\n"

	help += styles.HelpSection.Render("Navigation") + "\n"
	help += "  tab/shift+tab  Switch between panes\n"
	help += "  j/k or arrows  Select app / scroll\n"
	help += "  enter          Open app\n"
	help += "  esc            Clear filter / back\n\n"

	help += styles.HelpSection.Render("Tabs") + "\n"
	help += "  1  Overview    - App info and deployments\n"
	help += "  2  Logs        - Live runtime logs\n"
	help += "  3  Terminal    - Shell in the app container\n"
	help += "  4  Build       - Output of the latest deployment\n\n"

	help += styles.HelpSection.Render("Streams") + "\n"
	help += "  r              Reconnect (when disconnected)\n"
	help += "  c              Clear the buffer\n"
	help += "  f              Toggle follow\n"
	help += "  /              Filter log lines\n"
	help += "  i              Type into the terminal\n"
	help += "  ctrl+]         Leave the terminal\n"
	help += "  R              Refresh app list\n\n"

	help += styles.Muted.Render("Press esc or ? to close")

	overlay := styles.HelpOverlay.Render(help)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, overlay)
}

func joinWithSeparator(items []string, sep string) []string {
	if len(items) == 0 {
		return nil
	}
	result := make([]string, 0, len(items)*2-1)
	for i, item := range items {
		if i > 0 {
			result = append(result, sep)
		}
		result = append(result, item)
	}
	return result
}
