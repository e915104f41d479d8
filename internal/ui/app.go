package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rivetr/rivetr-console/internal/config"
	"github.com/rivetr/rivetr-console/internal/gateway"
	"github.com/rivetr/rivetr-console/internal/logging"
	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/rivetr/rivetr-console/internal/state"
	"github.com/rivetr/rivetr-console/internal/stream"
	"github.com/rivetr/rivetr-console/internal/ui/keys"
	"github.com/rivetr/rivetr-console/internal/ui/views"
)

// AppMode represents the current mode of the application
type AppMode int

const (
	ModeNormal AppMode = iota
	ModeHelp
	ModeSearch
	ModeInsert // keystrokes go to the remote terminal
)

// FocusedPane represents which pane has focus
type FocusedPane int

const (
	PaneApps FocusedPane = iota
	PaneDetails
)

// Tab represents the available detail tabs
type Tab int

const (
	TabOverview Tab = iota
	TabLogs
	TabTerminal
	TabBuild
)

var tabNames = []string{"Overview", "Logs", "Terminal", "Build"}

func (t Tab) String() string {
	if t >= 0 && int(t) < len(tabNames) {
		return tabNames[t]
	}
	return "Unknown"
}

// Backend is what the UI needs from a Rivetr server. *gateway.Client
// implements it.
type Backend interface {
	Team() string
	ListApps(ctx context.Context) ([]models.App, error)
	CacheAge() time.Duration
	ListDeployments(ctx context.Context, appID string) ([]models.Deployment, error)
	LogStream(appID string) stream.Dialer
	Terminal(appID string) stream.Dialer
	BuildLogs(deploymentID string) stream.Dialer
}

// App is the main application model
type App struct {
	// Configuration
	config  *config.Config
	backend Backend
	logger  logging.Logger
	server  string
	team    string

	ctx    context.Context
	cancel context.CancelFunc

	// UI state
	mode        AppMode
	focusedPane FocusedPane
	activeTab   Tab
	width       int
	height      int

	// Keys
	keys keys.KeyMap

	// Sub-models
	searchInput textinput.Model
	spinner     spinner.Model
	spinning    bool
	overview    *views.OverviewView
	logsView    *views.LogsView
	buildView   *views.LogsView
	termView    *views.TerminalView

	// Listings
	apps           []models.App
	appsErr        error
	appsAge        time.Duration
	selectedApp    int
	restoreApp     string
	deployments    []models.Deployment
	deploymentsErr error
	deploymentsFor string

	// Streams, one per tab
	sessions      map[Tab]*stream.Session
	buildFor      string // deployment followed by the build session
	notify        chan struct{}
	termConnected bool

	logFollow bool
}

// NewApp creates a new application instance. The team in uiState is the
// explicit team context; backend must already be scoped to it.
func NewApp(cfg *config.Config, uiState *state.State, backend Backend, logger logging.Logger) *App {
	if uiState == nil {
		uiState = state.DefaultState()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	tab := Tab(uiState.ActiveTab)
	if tab < TabOverview || tab > TabBuild {
		tab = TabOverview
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config:      cfg,
		backend:     backend,
		logger:      logger.With("component", "ui"),
		server:      uiState.SelectedServer,
		team:        backend.Team(),
		ctx:         ctx,
		cancel:      cancel,
		mode:        ModeNormal,
		focusedPane: FocusedPane(uiState.FocusedPane),
		activeTab:   tab,
		keys:        keys.DefaultKeyMap(),
		searchInput: ti,
		spinner:     sp,
		overview:    views.NewOverviewView(),
		logsView:    views.NewLogsView(80, 20),
		buildView:   views.NewLogsView(80, 20),
		termView:    views.NewTerminalView(80, 20),
		restoreApp:  uiState.SelectedApp,
		sessions:    make(map[Tab]*stream.Session),
		notify:      make(chan struct{}, 1),
		logFollow:   uiState.LogFollow,
	}
	app.logsView.SetFollow(app.logFollow)
	app.buildView.SetFollow(app.logFollow)
	if uiState.LogFilter != "" {
		app.logsView.SetFilter(uiState.LogFilter)
		app.searchInput.SetValue(uiState.LogFilter)
	}
	return app
}

// GetState returns the current UI state for persistence
func (a *App) GetState() *state.State {
	st := &state.State{
		SelectedServer: a.server,
		CurrentTeam:    a.team,
		ActiveTab:      int(a.activeTab),
		FocusedPane:    int(a.focusedPane),
		LogFilter:      a.logsView.Filter(),
		LogFollow:      a.logFollow,
		WindowWidth:    a.width,
		WindowHeight:   a.height,
	}
	if app := a.currentApp(); app != nil {
		st.SelectedApp = app.ID
	} else {
		st.SelectedApp = a.restoreApp
	}
	return st
}

// Close stops every stream and pending request. It is safe to call twice.
func (a *App) Close() {
	a.closeSessions()
	a.cancel()
}

// RefreshTickMsg triggers periodic listing refresh
type RefreshTickMsg struct{}

// streamUpdateMsg tells the UI that at least one session changed
type streamUpdateMsg struct{}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchApps(),
		a.waitForUpdate(),
		a.scheduleRefresh(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateViewportSizes()
		a.sendResize()

	case tea.KeyMsg:
		cmds = append(cmds, a.handleKey(msg))

	case gateway.AppsMsg:
		cmds = append(cmds, a.handleApps(msg))

	case gateway.DeploymentsMsg:
		if app := a.currentApp(); app == nil || app.ID != msg.AppID {
			break
		}
		a.deploymentsFor = msg.AppID
		a.deploymentsErr = msg.Error
		if msg.Error == nil {
			a.deployments = msg.Deployments
		}
		a.overview.SetData(a.currentApp(), a.deployments, a.deploymentsErr)
		if a.activeTab == TabBuild {
			a.ensureSession(TabBuild)
		}

	case streamUpdateMsg:
		a.syncViews()
		cmds = append(cmds, a.waitForUpdate())
		if a.anyPending() && !a.spinning {
			a.spinning = true
			cmds = append(cmds, a.spinner.Tick)
		}

	case spinner.TickMsg:
		if !a.anyPending() {
			a.spinning = false
			break
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case RefreshTickMsg:
		cmds = append(cmds, a.fetchApps(), a.fetchDeployments(), a.scheduleRefresh())
	}

	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch a.mode {
	case ModeHelp:
		if key.Matches(msg, a.keys.Escape) || key.Matches(msg, a.keys.Help) || msg.String() == "q" {
			a.mode = ModeNormal
		}
		return nil

	case ModeSearch:
		return a.handleSearchKey(msg)

	case ModeInsert:
		a.handleInsertKey(msg)
		return nil
	}

	// Normal mode keybindings
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.Close()
		return tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.mode = ModeHelp

	case key.Matches(msg, a.keys.Search):
		if a.activeLogsView() == nil {
			return nil
		}
		a.mode = ModeSearch
		a.searchInput.SetValue(a.activeLogsView().Filter())
		a.searchInput.CursorEnd()
		a.searchInput.Focus()
		return textinput.Blink

	case key.Matches(msg, a.keys.Escape):
		if v := a.activeLogsView(); v != nil && v.Filter() != "" {
			v.ClearFilter()
		} else if a.focusedPane == PaneDetails {
			a.focusedPane = PaneApps
		}

	case key.Matches(msg, a.keys.Tab), key.Matches(msg, a.keys.ShiftTab):
		if a.focusedPane == PaneApps {
			a.focusedPane = PaneDetails
		} else {
			a.focusedPane = PaneApps
		}

	case key.Matches(msg, a.keys.Tab1):
		a.setTab(TabOverview)
	case key.Matches(msg, a.keys.Tab2):
		a.setTab(TabLogs)
	case key.Matches(msg, a.keys.Tab3):
		a.setTab(TabTerminal)
	case key.Matches(msg, a.keys.Tab4):
		a.setTab(TabBuild)

	case key.Matches(msg, a.keys.ToggleFollow):
		a.logFollow = !a.logFollow
		a.logsView.SetFollow(a.logFollow)
		a.buildView.SetFollow(a.logFollow)

	case key.Matches(msg, a.keys.Clear):
		if s := a.sessions[a.activeTab]; s != nil {
			s.Clear()
		}

	case key.Matches(msg, a.keys.Reconnect):
		a.reconnectActive()

	case key.Matches(msg, a.keys.Refresh):
		return tea.Batch(a.fetchApps(), a.fetchDeployments())

	case key.Matches(msg, a.keys.Insert):
		if a.activeTab == TabTerminal && a.termConnected {
			a.mode = ModeInsert
			a.focusedPane = PaneDetails
		}

	case key.Matches(msg, a.keys.Enter):
		if a.focusedPane == PaneApps {
			a.focusedPane = PaneDetails
			if a.activeTab == TabOverview {
				a.setTab(TabLogs)
			}
		}

	case key.Matches(msg, a.keys.Up):
		if a.focusedPane == PaneApps {
			return a.moveSelection(-1)
		}
		return a.scroll(msg)

	case key.Matches(msg, a.keys.Down):
		if a.focusedPane == PaneApps {
			return a.moveSelection(1)
		}
		return a.scroll(msg)

	case key.Matches(msg, a.keys.PageUp), key.Matches(msg, a.keys.PageDown),
		key.Matches(msg, a.keys.Home), key.Matches(msg, a.keys.End):
		return a.scroll(msg)
	}
	return nil
}

func (a *App) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	v := a.activeLogsView()
	switch {
	case key.Matches(msg, a.keys.Escape):
		a.mode = ModeNormal
		a.searchInput.Reset()
		a.searchInput.Blur()
		if v != nil {
			v.ClearFilter()
		}
		return nil
	case key.Matches(msg, a.keys.Enter):
		a.mode = ModeNormal
		a.searchInput.Blur()
		return nil
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	if v != nil {
		v.SetFilter(a.searchInput.Value())
	}
	return cmd
}

func (a *App) handleInsertKey(msg tea.KeyMsg) {
	if key.Matches(msg, a.keys.ExitInsert) {
		a.mode = ModeNormal
		return
	}
	data, ok := views.KeyInput(msg)
	if !ok {
		return
	}
	s := a.sessions[TabTerminal]
	if s == nil {
		a.mode = ModeNormal
		return
	}
	if err := s.Send(models.Input{Data: data}); err != nil {
		a.logger.Debug("terminal input dropped", "err", err)
	}
}

// scroll forwards a navigation key to the active stream view
func (a *App) scroll(msg tea.KeyMsg) tea.Cmd {
	switch a.activeTab {
	case TabTerminal:
		return a.termView.Update(msg)
	case TabLogs, TabBuild:
		v := a.activeLogsView()
		switch {
		case key.Matches(msg, a.keys.End):
			a.logFollow = true
			v.SetFollow(true)
			return nil
		case key.Matches(msg, a.keys.Home):
			a.logFollow = false
			v.SetFollow(false)
			v.ScrollToTop()
			return nil
		case key.Matches(msg, a.keys.Up), key.Matches(msg, a.keys.PageUp):
			a.logFollow = false
			v.SetFollow(false)
		}
		return v.Update(msg)
	}
	return nil
}

func (a *App) activeLogsView() *views.LogsView {
	switch a.activeTab {
	case TabLogs:
		return a.logsView
	case TabBuild:
		return a.buildView
	default:
		return nil
	}
}

func (a *App) currentApp() *models.App {
	if a.selectedApp < 0 || a.selectedApp >= len(a.apps) {
		return nil
	}
	return &a.apps[a.selectedApp]
}

func (a *App) handleApps(msg gateway.AppsMsg) tea.Cmd {
	a.appsErr = msg.Error
	a.appsAge = msg.Age
	if msg.Error != nil {
		a.logger.Warn("app list refresh failed", "err", msg.Error)
		return nil
	}

	prev := ""
	if app := a.currentApp(); app != nil {
		prev = app.ID
	} else {
		prev = a.restoreApp
	}
	a.apps = msg.Apps

	a.selectedApp = 0
	for i, app := range a.apps {
		if app.ID == prev {
			a.selectedApp = i
			break
		}
	}

	current := a.currentApp()
	if current == nil {
		a.closeSessions()
		a.overview.SetData(nil, nil, nil)
		return nil
	}
	a.restoreApp = ""
	if current.ID != prev {
		return a.selectApp(a.selectedApp)
	}
	a.overview.SetData(current, a.deployments, a.deploymentsErr)
	if a.deploymentsFor != current.ID {
		a.ensureSession(a.activeTab)
		return a.fetchDeployments()
	}
	a.ensureSession(a.activeTab)
	return nil
}

func (a *App) moveSelection(delta int) tea.Cmd {
	next := a.selectedApp + delta
	if next < 0 || next >= len(a.apps) || next == a.selectedApp {
		return nil
	}
	return a.selectApp(next)
}

// selectApp switches the details pane to another app. Streams of the
// previous app are closed.
func (a *App) selectApp(i int) tea.Cmd {
	a.closeSessions()
	a.selectedApp = i
	a.deployments = nil
	a.deploymentsErr = nil
	a.deploymentsFor = ""
	a.overview.SetData(a.currentApp(), nil, nil)
	a.ensureSession(a.activeTab)
	return a.fetchDeployments()
}

func (a *App) setTab(t Tab) {
	if a.mode == ModeInsert && t != TabTerminal {
		a.mode = ModeNormal
	}
	a.activeTab = t
	a.ensureSession(t)
	a.syncViews()
}

func (a *App) updateViewportSizes() {
	w, h := a.streamViewSize()
	a.overview.SetSize(w, h)
	a.logsView.SetSize(w, h)
	a.buildView.SetSize(w, h)
	a.termView.SetSize(w, h)
}

func (a *App) fetchApps() tea.Cmd {
	ctx := a.ctx
	backend := a.backend
	return func() tea.Msg {
		apps, err := backend.ListApps(ctx)
		msg := gateway.AppsMsg{Apps: apps, Error: err}
		if err != nil {
			msg.Age = backend.CacheAge()
		}
		return msg
	}
}

func (a *App) fetchDeployments() tea.Cmd {
	app := a.currentApp()
	if app == nil {
		return nil
	}
	ctx := a.ctx
	backend := a.backend
	appID := app.ID
	return func() tea.Msg {
		deployments, err := backend.ListDeployments(ctx, appID)
		return gateway.DeploymentsMsg{AppID: appID, Deployments: deployments, Error: err}
	}
}

func (a *App) scheduleRefresh() tea.Cmd {
	base := time.Duration(a.config.UI.RefreshMs) * time.Millisecond
	active := time.Duration(a.config.UI.ActiveRefreshMs) * time.Millisecond
	if base <= 0 {
		base = 5 * time.Second
	}
	if active <= 0 {
		active = base
	}
	return tea.Tick(gateway.RefreshInterval(a.deployments, base, active), func(time.Time) tea.Msg {
		return RefreshTickMsg{}
	})
}

// waitForUpdate blocks until a session signals a change
func (a *App) waitForUpdate() tea.Cmd {
	notify := a.notify
	done := a.ctx.Done()
	return func() tea.Msg {
		select {
		case <-notify:
			return streamUpdateMsg{}
		case <-done:
			return nil
		}
	}
}
