package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rivetr/rivetr-console/internal/config"
	"github.com/rivetr/rivetr-console/internal/gateway"
	"github.com/rivetr/rivetr-console/internal/logging"
	"github.com/rivetr/rivetr-console/internal/mockserver"
	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/rivetr/rivetr-console/internal/state"
	"github.com/rivetr/rivetr-console/internal/stream"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Servers = []models.ServerProfile{
		{Name: "prod", URL: "https://rivetr.example.com", TokenEnv: "RIVETR_PROD_TOKEN", Team: "team-a"},
		{Name: "staging", URL: "https://staging.example.com"},
	}
	return cfg
}

func TestResolveServer(t *testing.T) {
	t.Run("Should pick the named profile", func(t *testing.T) {
		v := viper.New()
		v.Set("server", "staging")
		s, err := resolveServer(testConfig(), state.DefaultState(), v)
		require.NoError(t, err)
		assert.Equal(t, "https://staging.example.com", s.URL)
	})

	t.Run("Should reuse the last selected profile", func(t *testing.T) {
		st := state.DefaultState()
		st.SelectedServer = "staging"
		s, err := resolveServer(testConfig(), st, viper.New())
		require.NoError(t, err)
		assert.Equal(t, "staging", s.Name)
	})

	t.Run("Should fall back to the first profile", func(t *testing.T) {
		s, err := resolveServer(testConfig(), state.DefaultState(), viper.New())
		require.NoError(t, err)
		assert.Equal(t, "prod", s.Name)
	})

	t.Run("Should apply url and token overrides", func(t *testing.T) {
		v := viper.New()
		v.Set("url", "http://localhost:8080")
		v.Set("token", "secret")
		s, err := resolveServer(config.DefaultConfig(), state.DefaultState(), v)
		require.NoError(t, err)
		assert.Equal(t, "default", s.Name)
		assert.Equal(t, "http://localhost:8080", s.URL)
		assert.Equal(t, "secret", s.ResolvedToken())
	})

	t.Run("Should fail on an unknown profile", func(t *testing.T) {
		v := viper.New()
		v.Set("server", "nope")
		_, err := resolveServer(testConfig(), state.DefaultState(), v)
		assert.ErrorContains(t, err, "nope")
	})

	t.Run("Should fail with nothing configured", func(t *testing.T) {
		_, err := resolveServer(config.DefaultConfig(), state.DefaultState(), viper.New())
		assert.ErrorContains(t, err, "--mock")
	})
}

func TestSetup(t *testing.T) {
	t.Run("Should log an unreadable state file and fall back to defaults", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_STATE_HOME", dir)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "rivetr-console"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rivetr-console", "state.yml"), []byte("active_tab: [oops"), 0o644))

		v := viper.New()
		v.Set("config", filepath.Join(dir, "missing.yml"))
		v.Set("mock", true)
		var logs bytes.Buffer
		e, err := setup(context.Background(), v, &logs)
		require.NoError(t, err)
		defer e.Close()

		assert.Contains(t, logs.String(), "ui state not loaded")
		assert.Equal(t, "mock", e.server.Name)
		assert.Equal(t, "team-acme", e.uiState.CurrentTeam)
	})
}

func TestVersion(t *testing.T) {
	t.Run("Should print the build version", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "rivetr-console dev")
	})
}

func newTailEnv(t *testing.T) *env {
	t.Helper()
	srv := httptest.NewServer(mockserver.New(mockserver.Config{
		Token:       mockToken,
		LogInterval: 20 * time.Millisecond,
		BuildSteps:  []string{"Cloning repository", "Building image", "Build complete"},
	}, nil).Handler())
	t.Cleanup(srv.Close)

	client, err := gateway.NewClient(gateway.Options{
		Server: models.ServerProfile{Name: "mock", URL: srv.URL, Token: mockToken},
	})
	require.NoError(t, err)
	return &env{cfg: config.DefaultConfig(), client: client, logger: logging.Nop()}
}

func TestTail(t *testing.T) {
	t.Run("Should print build output and stop at the end frame", func(t *testing.T) {
		e := newTailEnv(t)
		var out, errOut bytes.Buffer
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := tail(ctx, tailOptions{
			dialer:    e.client.BuildLogs("dep-1"),
			mode:      stream.ModeBuildLogs,
			policy:    e.cfg.RetryPolicy(),
			env:       e,
			out:       &out,
			errOut:    &errOut,
			untilDown: true,
		})
		require.NoError(t, err)
		require.NoError(t, ctx.Err(), "tail should return before the deadline")
		assert.Contains(t, out.String(), "Cloning repository")
		assert.Contains(t, out.String(), "Build complete")
		assert.Empty(t, errOut.String())
	})

	t.Run("Should give up after the retry budget", func(t *testing.T) {
		srv := httptest.NewServer(mockserver.New(mockserver.Config{Token: mockToken}, nil).Handler())
		t.Cleanup(srv.Close)
		client, err := gateway.NewClient(gateway.Options{
			Server: models.ServerProfile{URL: srv.URL, Token: "wrong"},
		})
		require.NoError(t, err)

		var out, errOut bytes.Buffer
		err = tail(context.Background(), tailOptions{
			dialer: client.LogStream("app-web"),
			mode:   stream.ModeLogs,
			policy: stream.Policy{MaxAttempts: 1, BaseDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Millisecond},
			env:    &env{logger: logging.Nop()},
			out:    &out,
			errOut: &errOut,
		})
		assert.EqualError(t, err, stream.MaxAttemptsMessage)
		assert.Contains(t, errOut.String(), "retrying in")
	})
}

func TestPrinter(t *testing.T) {
	t.Run("Should print each entry once without emptying the buffer", func(t *testing.T) {
		var out bytes.Buffer
		buf := stream.NewBuffer(stream.DefaultLogCap)
		p := &printer{buf: buf, out: &out, errOut: &out, done: make(chan error, 1)}

		buf.Append(stream.Entry{Kind: stream.EntryInfo, Message: "Connected to container c1"})
		buf.Append(stream.Entry{Kind: stream.EntryLog, Message: "first", Timestamp: "t1"})
		p.BufferChanged(buf.Len())
		buf.Append(stream.Entry{Kind: stream.EntryLog, Message: "second"})
		p.BufferChanged(buf.Len())
		p.BufferChanged(buf.Len())

		assert.Equal(t, "-- Connected to container c1\nt1 first\nsecond\n", out.String())
		assert.Equal(t, 3, buf.Len())
	})
}
