package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// State represents the persisted UI state
type State struct {
	// Last selected server profile
	SelectedServer string `yaml:"selected_server,omitempty"`

	// Team whose apps are listed; passed explicitly to the gateway client
	CurrentTeam string `yaml:"current_team,omitempty"`

	// Last selected app
	SelectedApp string `yaml:"selected_app,omitempty"`

	// Last active tab
	ActiveTab int `yaml:"active_tab"`

	// Last focused pane (0 = apps, 1 = streams)
	FocusedPane int `yaml:"focused_pane"`

	// Log filter if any
	LogFilter string `yaml:"log_filter,omitempty"`

	// Log follow mode
	LogFollow bool `yaml:"log_follow"`

	// Window size (for restoration)
	WindowWidth  int `yaml:"window_width,omitempty"`
	WindowHeight int `yaml:"window_height,omitempty"`
}

// DefaultState returns a new state with default values
func DefaultState() *State {
	return &State{
		ActiveTab:   0,
		FocusedPane: 0,
		LogFollow:   true,
	}
}

// StatePath returns $XDG_STATE_HOME/rivetr-console/state.yml
func StatePath() (string, error) {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "rivetr-console", "state.yml"), nil
}

// Load reads the state file. A missing file yields defaults; on any error
// the defaults are returned alongside it.
func Load() (*State, error) {
	path, err := StatePath()
	if err != nil {
		return DefaultState(), err
	}
	return LoadFrom(path)
}

// LoadFrom reads the state file at path
func LoadFrom(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultState(), nil
	}
	if err != nil {
		return DefaultState(), fmt.Errorf("read state: %w", err)
	}

	st := DefaultState()
	if err := yaml.Unmarshal(data, st); err != nil {
		return DefaultState(), fmt.Errorf("parse state %s: %w", path, err)
	}
	return st, nil
}

// Save writes the state file
func Save(st *State) error {
	path, err := StatePath()
	if err != nil {
		return err
	}
	return SaveTo(st, path)
}

// SaveTo writes st to path through a temp file and rename
func SaveTo(st *State, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, path)
}

// SelectTeam switches the current team and forgets the app selection
func (s *State) SelectTeam(team string) {
	if s.CurrentTeam == team {
		return
	}
	s.CurrentTeam = team
	s.SelectedApp = ""
}
