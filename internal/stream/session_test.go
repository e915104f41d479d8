package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rivetr/rivetr-console/internal/logging"
	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestSession(d Dialer, mode Mode, clock Clock, p Policy) (*Session, *recorder) {
	rec := &recorder{}
	s := NewSession(Options{
		ID:       "test",
		Dialer:   d,
		Mode:     mode,
		Policy:   p,
		Clock:    clock,
		Observer: rec,
	})
	return s, rec
}

func phaseIs(s *Session, p Phase) func() bool {
	return func() bool { return s.State().Phase == p }
}

func TestSessionLifecycle(t *testing.T) {
	t.Run("Should allow Close twice and before Start", func(t *testing.T) {
		d := newFakeDialer()
		s, _ := newTestSession(d, ModeLogs, &fakeClock{}, DefaultPolicy())
		s.Close()
		s.Close()
		s.Start()
		assert.Zero(t, d.dialCount())
		assert.Equal(t, PhaseIdle, s.State().Phase)
	})

	t.Run("Should not retry when closed during the dial", func(t *testing.T) {
		d := newFakeDialer()
		clock := &fakeClock{}
		s, rec := newTestSession(d, ModeLogs, clock, DefaultPolicy())
		s.Start()
		require.Eventually(t, func() bool { return d.dialCount() == 1 }, waitFor, tick)

		s.Close()
		assert.Equal(t, PhaseIdle, s.State().Phase)
		assert.False(t, rec.saw(PhaseReconnecting))
		assert.Zero(t, clock.count())
		assert.Equal(t, 1, d.dialCount())
	})

	t.Run("Should ignore a second Start", func(t *testing.T) {
		d := newFakeDialer()
		s, _ := newTestSession(d, ModeLogs, &fakeClock{}, DefaultPolicy())
		defer s.Close()
		s.Start()
		s.Start()
		require.Eventually(t, func() bool { return d.dialCount() == 1 }, waitFor, tick)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, d.dialCount())
	})

	t.Run("Should close the open connection and cancel the retry timer", func(t *testing.T) {
		d := newFakeDialer()
		clock := &fakeClock{}
		conn := newFakeConn()
		d.succeed(conn)
		s, _ := newTestSession(d, ModeLogs, clock, DefaultPolicy())
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)

		conn.fail(io.ErrUnexpectedEOF)
		require.Eventually(t, phaseIs(s, PhaseReconnecting), waitFor, tick)
		require.Equal(t, 1, clock.pending())

		s.Close()
		assert.True(t, conn.isClosed())
		assert.Zero(t, clock.pending())
		assert.Equal(t, PhaseIdle, s.State().Phase)

		// A late timer callback must not revive the session
		clock.fireLast()
		assert.Equal(t, 1, d.dialCount())
	})

	t.Run("Should close a connection that arrives after Close started", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			d := newLateDialer()
			s, rec := newTestSession(d, ModeLogs, &fakeClock{}, DefaultPolicy())
			s.Start()
			select {
			case <-d.started:
			case <-time.After(waitFor):
				t.Fatal("dial never started")
			}

			s.Close()
			require.True(t, d.conn.isClosed(), "run %d", i)
			assert.NotContains(t, rec.phases(), PhaseOpen)
			assert.Equal(t, PhaseIdle, s.State().Phase)
		}
	})

	t.Run("Should not reconnect when a read fails because of Close", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			d := newFakeDialer()
			clock := &fakeClock{}
			conn := abortConn{newFakeConn()}
			d.succeed(conn)
			s, rec := newTestSession(d, ModeLogs, clock, DefaultPolicy())
			s.Start()
			require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)

			before := rec.count()
			s.Close()
			assert.NotContains(t, rec.phasesSince(before), PhaseReconnecting, "run %d", i)
			assert.Zero(t, clock.count())
			assert.Equal(t, PhaseIdle, s.State().Phase)
		}
	})

	t.Run("Should log dropped frames when the connection goes away", func(t *testing.T) {
		var out bytes.Buffer
		d := newFakeDialer()
		d.succeed(droppingConn{fakeConn: newFakeConn(), dropped: 3})
		s := NewSession(Options{
			Dialer: d,
			Mode:   ModeLogs,
			Clock:  &fakeClock{},
			Logger: logging.NewLogger(&logging.Config{Level: logging.DebugLevel, Output: &out}),
		})
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)

		s.Close()
		assert.Contains(t, out.String(), "malformed frames dropped")
		assert.Contains(t, out.String(), "count=3")
	})
}

func TestSessionReconnect(t *testing.T) {
	t.Run("Should back off after failed dials", func(t *testing.T) {
		d := newFakeDialer()
		clock := &fakeClock{}
		d.refuse()
		s, _ := newTestSession(d, ModeLogs, clock, DefaultPolicy())
		defer s.Close()
		s.Start()

		require.Eventually(t, phaseIs(s, PhaseReconnecting), waitFor, tick)
		assert.Equal(t, 1, s.State().Attempt)
		assert.Equal(t, "connection failed", s.State().Err)

		d.refuse()
		clock.fireLast()
		require.Eventually(t, func() bool { return s.State().Attempt == 2 }, waitFor, tick)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.delays())
	})

	t.Run("Should fail after the budget and recover on manual reconnect", func(t *testing.T) {
		d := newFakeDialer()
		clock := &fakeClock{}
		s, _ := newTestSession(d, ModeLogs, clock, Policy{MaxAttempts: 1})
		defer s.Close()

		d.refuse()
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseReconnecting), waitFor, tick)
		d.refuse()
		clock.fireLast()
		require.Eventually(t, phaseIs(s, PhaseFailed), waitFor, tick)
		assert.Equal(t, MaxAttemptsMessage, s.State().Err)
		assert.Equal(t, 1, clock.count())

		d.succeed(newFakeConn())
		s.Reconnect()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)
		assert.Equal(t, 0, s.State().Attempt)
	})

	t.Run("Should ignore manual reconnect while open", func(t *testing.T) {
		d := newFakeDialer()
		d.succeed(newFakeConn())
		s, _ := newTestSession(d, ModeLogs, &fakeClock{}, DefaultPolicy())
		defer s.Close()
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)

		s.Reconnect()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, d.dialCount())
		assert.Equal(t, PhaseOpen, s.State().Phase)
	})

	t.Run("Should keep the buffer across reconnects", func(t *testing.T) {
		d := newFakeDialer()
		clock := &fakeClock{}
		first := newFakeConn()
		d.succeed(first)
		s, rec := newTestSession(d, ModeLogs, clock, DefaultPolicy())
		defer s.Close()
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)

		first.push(models.Connected{ContainerID: "abc"})
		first.push(models.Log{Message: "one"})
		first.push(models.Error{Message: "container restarting"})
		require.Eventually(t, phaseIs(s, PhaseReconnecting), waitFor, tick)
		assert.Equal(t, "container restarting", s.State().Err)
		assert.True(t, first.isClosed())

		second := newFakeConn()
		d.succeed(second)
		clock.fireLast()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)
		second.push(models.Connected{ContainerID: "abc"})
		second.push(models.Log{Message: "two"})
		require.Eventually(t, func() bool { return s.Buffer().Len() == 3 }, waitFor, tick)

		msgs := make([]string, 0, 3)
		for _, e := range s.Snapshot() {
			msgs = append(msgs, e.Message)
		}
		assert.Equal(t, []string{"Connected to container abc", "one", "two"}, msgs)
		assert.NotEmpty(t, rec.lengths)
	})

	t.Run("Should clear the buffer without touching the connection", func(t *testing.T) {
		d := newFakeDialer()
		conn := newFakeConn()
		d.succeed(conn)
		s, rec := newTestSession(d, ModeLogs, &fakeClock{}, DefaultPolicy())
		defer s.Close()
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)
		conn.push(models.Log{Message: "one"})
		require.Eventually(t, func() bool { return s.Buffer().Len() == 1 }, waitFor, tick)

		s.Clear()
		require.Eventually(t, func() bool { return s.Buffer().Len() == 0 }, waitFor, tick)
		assert.Equal(t, PhaseOpen, s.State().Phase)
		require.Eventually(t, func() bool {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			return len(rec.lengths) > 0 && rec.lengths[len(rec.lengths)-1] == 0
		}, waitFor, tick)
	})
}

func TestSessionSend(t *testing.T) {
	t.Run("Should report not connected before the stream opens", func(t *testing.T) {
		d := newFakeDialer()
		s, _ := newTestSession(d, ModeTerminal, &fakeClock{}, DefaultPolicy())
		defer s.Close()
		assert.ErrorIs(t, s.Send(models.Input{Data: "ls"}), ErrNotConnected)
	})

	t.Run("Should refuse sends on receive-only streams", func(t *testing.T) {
		d := newFakeDialer()
		d.succeed(newFakeConn())
		s, _ := newTestSession(d, ModeLogs, &fakeClock{}, DefaultPolicy())
		defer s.Close()
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)
		assert.ErrorIs(t, s.Send(models.Input{Data: "ls"}), ErrNotDuplex)
	})

	t.Run("Should forward frames on duplex streams", func(t *testing.T) {
		d := newFakeDialer()
		conn := fakeDuplex{newFakeConn()}
		d.succeed(conn)
		s, _ := newTestSession(d, ModeTerminal, &fakeClock{}, DefaultPolicy())
		defer s.Close()
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)

		require.NoError(t, s.Send(models.Input{Data: "ls\r"}))
		require.NoError(t, s.Send(models.Resize{Cols: 80, Rows: 24}))
		conn.mu.Lock()
		defer conn.mu.Unlock()
		assert.Equal(t, []models.Outbound{models.Input{Data: "ls\r"}, models.Resize{Cols: 80, Rows: 24}}, conn.sent)
	})
}

func TestSessionSSE(t *testing.T) {
	t.Run("Should buffer the log then schedule a retry after end", func(t *testing.T) {
		var gotAuth string
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			gotAuth = r.Header.Get("Authorization")
			mu.Unlock()
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			fmt.Fprint(w, "data: {\"type\":\"log\",\"id\":1,\"message\":\"hi\"}\n\n")
			flusher.Flush()
			fmt.Fprint(w, "data: {\"type\":\"end\"}\n\n")
			flusher.Flush()
		}))
		defer srv.Close()

		clock := &fakeClock{}
		s, rec := newTestSession(NewSSEDialer(srv.URL+"/api/apps/a1/logs/stream", "secret"), ModeLogs, clock, DefaultPolicy())
		defer s.Close()
		s.Start()

		require.Eventually(t, phaseIs(s, PhaseReconnecting), waitFor, tick)
		assert.Equal(t, []Entry{{Kind: EntryLog, ID: 1, Message: "hi"}}, s.Snapshot())
		assert.Equal(t, 1, s.State().Attempt)
		assert.Equal(t, []time.Duration{time.Second}, clock.delays())
		assert.Equal(t, []Phase{PhaseConnecting, PhaseOpen, PhaseReconnecting}, rec.phases())

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "Bearer secret", gotAuth)
	})

	t.Run("Should retry on a non-2xx response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "app not running", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		clock := &fakeClock{}
		s, _ := newTestSession(NewSSEDialer(srv.URL, ""), ModeLogs, clock, DefaultPolicy())
		defer s.Close()
		s.Start()

		require.Eventually(t, phaseIs(s, PhaseReconnecting), waitFor, tick)
		assert.Equal(t, "app not running", s.State().Err)
	})
}

func TestSessionWebSocket(t *testing.T) {
	t.Run("Should echo terminal input through the socket", func(t *testing.T) {
		upgrader := websocket.Upgrader{}
		var mu sync.Mutex
		var token string
		var resized []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			token = r.URL.Query().Get("token")
			mu.Unlock()
			c, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer c.Close()
			_ = c.WriteJSON(map[string]string{"type": "connected", "container_id": "box"})
			for {
				var in struct {
					Type string `json:"type"`
					Data string `json:"data"`
					Cols int    `json:"cols"`
					Rows int    `json:"rows"`
				}
				if err := c.ReadJSON(&in); err != nil {
					return
				}
				switch in.Type {
				case "data":
					_ = c.WriteJSON(map[string]string{"type": "data", "data": in.Data})
				case "resize":
					mu.Lock()
					resized = append(resized, fmt.Sprintf("%dx%d", in.Cols, in.Rows))
					mu.Unlock()
				}
			}
		}))
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/apps/a1/terminal"
		s, _ := newTestSession(NewWebSocketDialer(url, "secret"), ModeTerminal, &fakeClock{}, DefaultPolicy())
		defer s.Close()
		s.Start()
		require.Eventually(t, phaseIs(s, PhaseOpen), waitFor, tick)

		require.NoError(t, s.Send(models.Resize{Cols: 120, Rows: 40}))
		require.NoError(t, s.Send(models.Input{Data: "whoami\r"}))
		require.Eventually(t, func() bool { return s.Buffer().Len() == 2 }, waitFor, tick)

		snap := s.Snapshot()
		assert.Equal(t, Entry{Kind: EntryInfo, Message: "Connected to container box"}, snap[0])
		assert.Equal(t, Entry{Kind: EntryOutput, Message: "whoami\r"}, snap[1])

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "secret", token)
		assert.Equal(t, []string{"120x40"}, resized)
	})

	t.Run("Should redact the token from the endpoint", func(t *testing.T) {
		d := NewWebSocketDialer("ws://host/api/apps/a1/terminal", "secret")
		assert.NotContains(t, d.Endpoint(), "secret")
		assert.Contains(t, d.Endpoint(), "token=REDACTED")
	})
}

func TestOutboundEncoding(t *testing.T) {
	t.Run("Should encode input and resize frames", func(t *testing.T) {
		b, err := json.Marshal(models.Input{Data: "a"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"data","data":"a"}`, string(b))

		b, err = json.Marshal(models.Resize{Cols: 80, Rows: 24})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"resize","cols":80,"rows":24}`, string(b))
	})
}
