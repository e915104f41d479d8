package ui

import (
	"github.com/rivetr/rivetr-console/internal/gateway"
	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/rivetr/rivetr-console/internal/stream"
)

// notifier wakes the UI when any session changes. Signals coalesce: the UI
// re-reads every session when it wakes, so one pending signal is enough.
type notifier chan struct{}

func (n notifier) signal() {
	select {
	case n <- struct{}{}:
	default:
	}
}

func (n notifier) StateChanged(stream.State) { n.signal() }
func (n notifier) BufferChanged(int)         { n.signal() }

// ensureSession starts the stream behind tab if it is not running yet
func (a *App) ensureSession(t Tab) {
	app := a.currentApp()
	if app == nil {
		return
	}

	if t == TabBuild {
		dep, ok := a.buildTarget()
		if !ok {
			return
		}
		if s := a.sessions[TabBuild]; s != nil {
			if a.buildFor == dep.ID {
				return
			}
			s.Close()
			delete(a.sessions, TabBuild)
		}
		a.buildFor = dep.ID
		a.startSession(TabBuild, a.backend.BuildLogs(dep.ID), stream.ModeBuildLogs)
		return
	}

	if a.sessions[t] != nil {
		return
	}
	switch t {
	case TabLogs:
		a.startSession(TabLogs, a.backend.LogStream(app.ID), stream.ModeLogs)
	case TabTerminal:
		a.startSession(TabTerminal, a.backend.Terminal(app.ID), stream.ModeTerminal)
	}
}

// buildTarget picks the in-progress deployment, or the newest one
func (a *App) buildTarget() (models.Deployment, bool) {
	if dep, ok := gateway.LatestActive(a.deployments); ok {
		return dep, true
	}
	if len(a.deployments) > 0 {
		return a.deployments[0], true
	}
	return models.Deployment{}, false
}

func (a *App) startSession(t Tab, dialer stream.Dialer, mode stream.Mode) {
	var buf *stream.Buffer
	if mode != stream.ModeTerminal {
		capacity := a.config.UI.LogTailLines
		if capacity <= 0 {
			capacity = stream.DefaultLogCap
		}
		buf = stream.NewBuffer(capacity)
	}
	s := stream.NewSession(stream.Options{
		Dialer:   dialer,
		Mode:     mode,
		Buffer:   buf,
		Policy:   a.config.RetryPolicy(),
		Logger:   a.logger,
		Observer: notifier(a.notify),
	})
	a.sessions[t] = s
	s.Start()
}

func (a *App) closeSessions() {
	for t, s := range a.sessions {
		s.Close()
		delete(a.sessions, t)
	}
	a.buildFor = ""
	a.termConnected = false
	if a.mode == ModeInsert {
		a.mode = ModeNormal
	}
	a.logsView.SetEntries(nil)
	a.buildView.SetEntries(nil)
	a.termView.SetEntries(nil)
}

// reconnectActive redials the active tab's stream. It is only offered while
// the stream is neither connected nor waiting on a retry timer.
func (a *App) reconnectActive() {
	s := a.sessions[a.activeTab]
	if s == nil {
		a.ensureSession(a.activeTab)
		return
	}
	if !s.State().CanReconnect() {
		return
	}
	s.Reconnect()
}

// syncViews copies session snapshots into the views
func (a *App) syncViews() {
	if s := a.sessions[TabLogs]; s != nil {
		a.logsView.SetEntries(s.Snapshot())
	}
	if s := a.sessions[TabBuild]; s != nil {
		a.buildView.SetEntries(s.Snapshot())
	}
	if s := a.sessions[TabTerminal]; s != nil {
		a.termView.SetEntries(s.Snapshot())
		connected := s.State().Connected()
		if connected && !a.termConnected {
			a.termConnected = true
			a.sendResize()
		}
		a.termConnected = connected
	}
	if !a.termConnected && a.mode == ModeInsert {
		a.mode = ModeNormal
	}
}

// anyPending reports whether a session is dialing or waiting to redial
func (a *App) anyPending() bool {
	for _, s := range a.sessions {
		switch s.State().Phase {
		case stream.PhaseConnecting, stream.PhaseReconnecting:
			return true
		}
	}
	return false
}

// sendResize reports the terminal viewport size to the remote shell
func (a *App) sendResize() {
	s := a.sessions[TabTerminal]
	if s == nil || !a.termConnected {
		return
	}
	cols, rows := a.termView.Size()
	if cols <= 0 || rows <= 0 {
		return
	}
	if err := s.Send(models.Resize{Cols: cols, Rows: rows}); err != nil {
		a.logger.Debug("terminal resize dropped", "err", err)
	}
}

// streamState returns the state of the stream behind t
func (a *App) streamState(t Tab) (stream.State, bool) {
	s := a.sessions[t]
	if s == nil {
		return stream.State{}, false
	}
	return s.State(), true
}
