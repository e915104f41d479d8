package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rivetr/rivetr-console/internal/config"
	"github.com/rivetr/rivetr-console/internal/gateway"
	"github.com/rivetr/rivetr-console/internal/logging"
	"github.com/rivetr/rivetr-console/internal/mockserver"
	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/rivetr/rivetr-console/internal/state"
	"github.com/rivetr/rivetr-console/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const mockToken = "mock-token"

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "rivetr-console",
		Short: "Terminal console for Rivetr apps",
		Long: `rivetr-console lists the apps of a Rivetr team and streams their runtime
logs, build output and an interactive container shell. Streams reconnect
automatically with exponential backoff.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), v)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default $XDG_CONFIG_HOME/rivetr-console/config.yml)")
	flags.String("server", "", "server profile name from the config file")
	flags.String("url", "", "server base URL, overrides the profile")
	flags.String("token", "", "API token, overrides the profile")
	flags.String("team", "", "team whose apps are listed")
	flags.Bool("mock", false, "run against a built-in mock backend")
	flags.String("log-level", "", "debug, info, warn, error or disabled")
	flags.String("log-file", "", "diagnostic log file for the TUI")
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix("RIVETR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.AddCommand(
		newLogsCmd(v),
		newBuildLogsCmd(v),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rivetr-console %s (%s)\n", version, commit)
		},
	}
}

// env is everything a command needs once flags and files are resolved
type env struct {
	cfg     *config.Config
	uiState *state.State
	server  models.ServerProfile
	client  *gateway.Client
	logger  logging.Logger
	cleanup []func()
}

func (e *env) Close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// setup resolves configuration, the server profile and the team. logOut
// receives diagnostics; nil selects the configured log file.
func setup(ctx context.Context, v *viper.Viper, logOut io.Writer) (*env, error) {
	cfg, err := loadConfig(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	// Load falls back to defaults on error; the error is logged below
	uiState, stateErr := state.Load()

	e := &env{cfg: cfg, uiState: uiState}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	level := cfg.Log.Level
	if l := v.GetString("log-level"); l != "" {
		level = l
	}
	if logOut == nil {
		path := v.GetString("log-file")
		if path == "" {
			path = cfg.Log.File
		}
		if path == "" {
			if path, err = logging.DefaultLogPath(); err != nil {
				return nil, err
			}
		}
		f, err := logging.OpenFile(path)
		if err != nil {
			return nil, err
		}
		e.cleanup = append(e.cleanup, func() { _ = f.Close() })
		logOut = f
	}
	e.logger = logging.NewLogger(&logging.Config{
		Level:      logging.ParseLevel(level),
		Output:     logOut,
		JSON:       cfg.Log.JSON,
		TimeFormat: "2006-01-02 15:04:05",
	})
	if stateErr != nil {
		e.logger.Warn("ui state not loaded, using defaults", "err", stateErr)
	}

	if v.GetBool("mock") {
		server, stop, err := startMock(ctx, e.logger)
		if err != nil {
			return nil, err
		}
		e.cleanup = append(e.cleanup, stop)
		e.server = server
	} else {
		server, err := resolveServer(cfg, uiState, v)
		if err != nil {
			return nil, err
		}
		e.server = server
	}

	// A saved team only applies to the server it was picked on
	if uiState.SelectedServer != e.server.Name {
		uiState.SelectedServer = e.server.Name
		uiState.SelectTeam(e.server.Team)
	}
	if team := v.GetString("team"); team != "" {
		uiState.SelectTeam(team)
	}
	if uiState.CurrentTeam == "" {
		uiState.SelectTeam(e.server.Team)
	}

	e.client, err = gateway.NewClient(gateway.Options{
		Server:    e.server,
		Team:      uiState.CurrentTeam,
		Transport: cfg.Transport(),
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("console ready", "server", e.server.Name, "url", e.server.URL, "team", uiState.CurrentTeam)

	ok = true
	return e, nil
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, _, err = config.LoadFrom(path)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// resolveServer picks the profile named by --server, the one used last, or
// the first configured one, then applies --url and --token
func resolveServer(cfg *config.Config, uiState *state.State, v *viper.Viper) (models.ServerProfile, error) {
	var server models.ServerProfile

	name := v.GetString("server")
	switch {
	case name != "":
		p := cfg.GetServer(name)
		if p == nil {
			return server, fmt.Errorf("no server named %q in config", name)
		}
		server = *p
	case uiState.SelectedServer != "" && cfg.GetServer(uiState.SelectedServer) != nil:
		server = *cfg.GetServer(uiState.SelectedServer)
	case len(cfg.Servers) > 0:
		server = cfg.Servers[0]
	}

	if u := v.GetString("url"); u != "" {
		server.URL = u
		if server.Name == "" {
			server.Name = "default"
		}
	}
	if t := v.GetString("token"); t != "" {
		server.Token = t
	}
	if server.URL == "" {
		return server, errors.New("no server configured: add one to the config file, pass --url, or use --mock")
	}
	return server, nil
}

// startMock serves the mock backend on a loopback port
func startMock(ctx context.Context, logger logging.Logger) (models.ServerProfile, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return models.ServerProfile{}, nil, fmt.Errorf("mock backend: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	srv := mockserver.New(mockserver.Config{Token: mockToken}, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("mock backend stopped", "err", err)
		}
	}()

	profile := models.ServerProfile{
		Name:  "mock",
		URL:   "http://" + ln.Addr().String(),
		Token: mockToken,
		Team:  "team-acme",
	}
	return profile, func() { cancel(); <-done }, nil
}

func runTUI(ctx context.Context, v *viper.Viper) error {
	e, err := setup(ctx, v, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	app := ui.NewApp(e.cfg, e.uiState, e.client, e.logger)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run console: %w", err)
	}

	// Save state on exit
	if finalApp, ok := finalModel.(*ui.App); ok {
		if saveState := finalApp.GetState(); saveState != nil {
			if err := state.Save(saveState); err != nil {
				e.logger.Warn("state not saved", "err", err)
			}
		}
	}
	return nil
}
