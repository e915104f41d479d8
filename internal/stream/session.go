package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rivetr/rivetr-console/internal/logging"
	"github.com/rivetr/rivetr-console/internal/models"
)

const eventQueueSize = 64

// Observer is notified from the session goroutine. Implementations must not
// block.
type Observer interface {
	StateChanged(s State)
	BufferChanged(n int)
}

// Options configures a Session
type Options struct {
	ID       string // defaults to a random uuid
	Dialer   Dialer
	Mode     Mode
	Buffer   *Buffer // nil creates one sized for Mode
	Policy   Policy
	Clock    Clock
	Logger   logging.Logger
	Observer Observer
}

// Session keeps one stream alive: it dials, decodes, routes messages into its
// Buffer and redials on loss until the retry budget is spent. All mutable
// stream state is owned by a single event loop goroutine.
type Session struct {
	id       string
	mode     Mode
	dialer   Dialer
	router   Router
	buf      *Buffer
	log      logging.Logger
	observer Observer
	ctrl     *Controller

	ctx    context.Context
	cancel context.CancelFunc
	events chan any
	wg     sync.WaitGroup
	done   chan struct{} // closed once Close has released everything

	lifeMu  sync.Mutex
	started bool
	closed  bool

	stateMu sync.RWMutex
	state   State

	connMu sync.Mutex
	live   Conn

	// loop-owned
	conn Conn
	gen  uint64
}

type (
	dialResult struct {
		gen  uint64
		conn Conn
		err  error
	}
	frameEvent struct {
		gen uint64
		msg models.StreamMessage
	}
	readFailed struct {
		gen uint64
		err error
	}
	retryDue struct {
		seq uint64
	}
	reconnectReq struct{}
	clearReq     struct{}
)

// NewSession creates an idle session; nothing is dialed until Start
func NewSession(opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	buf := opts.Buffer
	if buf == nil {
		capacity := DefaultLogCap
		if opts.Mode == ModeTerminal {
			capacity = 0
		}
		buf = NewBuffer(capacity)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		mode:     opts.Mode,
		dialer:   opts.Dialer,
		router:   NewRouter(opts.Mode, buf),
		buf:      buf,
		observer: opts.Observer,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan any, eventQueueSize),
		done:     make(chan struct{}),
	}
	s.log = logger.With("component", "stream", "session", id, "mode", opts.Mode.String(), "endpoint", opts.Dialer.Endpoint())
	s.ctrl = NewController(opts.Policy, opts.Clock, func(seq uint64) {
		s.post(retryDue{seq: seq})
	}, s.stateChanged)
	return s
}

// ID returns the session id used in logs
func (s *Session) ID() string { return s.id }

// Mode returns the routing mode
func (s *Session) Mode() Mode { return s.mode }

// Buffer returns the session buffer
func (s *Session) Buffer() *Buffer { return s.buf }

// Snapshot returns a copy of the buffered entries
func (s *Session) Snapshot() []Entry { return s.buf.Snapshot() }

// State returns the latest connection state
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Start opens the stream. Calling it again, or after Close, does nothing.
func (s *Session) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	s.wg.Add(1)
	go s.loop()
	s.post(reconnectReq{})
}

// Reconnect asks for a manual redial. It is ignored while connecting or open.
func (s *Session) Reconnect() {
	if !s.running() {
		return
	}
	s.post(reconnectReq{})
}

// Clear drops every buffered entry without touching the connection
func (s *Session) Clear() {
	if !s.running() {
		s.buf.Clear()
		return
	}
	s.post(clearReq{})
}

// Send writes an outbound frame on a duplex connection
func (s *Session) Send(out models.Outbound) error {
	s.connMu.Lock()
	conn := s.live
	s.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	duplex, ok := conn.(DuplexConn)
	if !ok {
		return ErrNotDuplex
	}
	return duplex.Send(out)
}

// Close tears the session down and waits for its goroutines. Every
// connection the session dialed is closed when it returns. It is safe to call
// more than once and before Start.
func (s *Session) Close() {
	s.lifeMu.Lock()
	if s.closed {
		s.lifeMu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.lifeMu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.drain()
	close(s.done)
}

func (s *Session) running() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.started && !s.closed
}

// post delivers ev to the loop unless the session is shutting down
func (s *Session) post(ev any) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return
		case ev := <-s.events:
			if s.ctx.Err() != nil {
				discard(ev)
				s.teardown()
				return
			}
			s.handle(ev)
		}
	}
}

// drain releases whatever reached the queue after the loop stopped. Only
// called once every session goroutine has exited.
func (s *Session) drain() {
	for {
		select {
		case ev := <-s.events:
			discard(ev)
		default:
			return
		}
	}
}

// discard drops an event that will never be handled
func discard(ev any) {
	if r, ok := ev.(dialResult); ok && r.conn != nil {
		_ = r.conn.Close()
	}
}

func (s *Session) teardown() {
	s.ctrl.Teardown()
	s.dropConn()
	s.log.Debug("session closed")
}

func (s *Session) handle(ev any) {
	switch ev := ev.(type) {
	case reconnectReq:
		s.onReconnect()
	case retryDue:
		if s.ctrl.RetryDue(ev.seq) {
			s.dial()
		}
	case dialResult:
		s.onDial(ev)
	case frameEvent:
		s.onFrame(ev)
	case readFailed:
		s.onReadFailed(ev)
	case clearReq:
		s.buf.Clear()
		s.bufferChanged()
	}
}

func (s *Session) onReconnect() {
	if s.ctrl.State().Phase == PhaseIdle {
		if !s.ctrl.Start() {
			return
		}
	} else if !s.ctrl.Manual() {
		s.log.Debug("reconnect ignored", "state", s.ctrl.State().String())
		return
	} else {
		s.log.Info("manual reconnect")
	}
	s.dropConn()
	s.dial()
}

func (s *Session) dial() {
	s.gen++
	gen := s.gen
	attempt := s.ctrl.State().Attempt
	s.log.Debug("dialing", "attempt", attempt)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		conn, err := s.dialer.Dial(s.ctx)
		if conn != nil && s.ctx.Err() != nil {
			_ = conn.Close()
			return
		}
		if !s.post(dialResult{gen: gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (s *Session) onDial(ev dialResult) {
	if ev.gen != s.gen {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}
	if ev.err != nil {
		if IsAborted(ev.err) {
			s.log.Debug("dial aborted")
			return
		}
		s.log.Warn("dial failed", "attempt", s.ctrl.State().Attempt, "err", ev.err)
		s.lost(dialFailureText(ev.err))
		return
	}

	s.setConn(ev.conn)
	s.ctrl.Opened()
	s.log.Info("stream open")

	conn := ev.conn
	gen := ev.gen
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			msg, err := conn.Next()
			if err != nil {
				s.post(readFailed{gen: gen, err: err})
				return
			}
			if !s.post(frameEvent{gen: gen, msg: msg}) {
				return
			}
		}
	}()
}

func (s *Session) onFrame(ev frameEvent) {
	if ev.gen != s.gen {
		return
	}
	verdict := s.router.Route(ev.msg)
	if verdict.Changed {
		s.bufferChanged()
	}
	if verdict.Terminate {
		s.log.Info("stream terminated by backend", "type", ev.msg.Type(), "reason", verdict.Reason)
		s.dropConn()
		s.lost(verdict.Reason)
	}
}

func (s *Session) onReadFailed(ev readFailed) {
	if ev.gen != s.gen {
		return
	}
	reason := "connection lost"
	switch {
	case errors.Is(ev.err, io.EOF):
		reason = "stream closed by server"
		s.log.Info("stream closed by server")
	case errors.Is(ev.err, ErrClosed):
		return
	default:
		s.log.Warn("stream read failed", "err", ev.err)
	}
	s.dropConn()
	s.lost(reason)
}

func (s *Session) lost(reason string) {
	if s.ctrl.Lost(reason) {
		st := s.ctrl.State()
		s.log.Info("reconnect scheduled", "attempt", st.Attempt, "in", st.RetryIn)
		return
	}
	if s.ctrl.State().Phase == PhaseFailed {
		s.log.Error("giving up", "reason", reason)
	}
}

// dropConn closes the current connection and invalidates its reader
func (s *Session) dropConn() {
	if s.conn == nil {
		return
	}
	s.gen++
	if dc, ok := s.conn.(dropCounter); ok {
		if n := dc.Dropped(); n > 0 {
			s.log.Debug("malformed frames dropped", "count", n)
		}
	}
	_ = s.conn.Close()
	s.setConn(nil)
}

func (s *Session) setConn(c Conn) {
	s.conn = c
	s.connMu.Lock()
	s.live = c
	s.connMu.Unlock()
}

func (s *Session) stateChanged(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	if s.observer != nil {
		s.observer.StateChanged(st)
	}
}

func (s *Session) bufferChanged() {
	if s.observer != nil {
		s.observer.BufferChanged(s.buf.Len())
	}
}

// dialFailureText is the visible error for a failed handshake
func dialFailureText(err error) string {
	var ce *ConnectionError
	if errors.As(err, &ce) && ce.Kind == KindStatus {
		if ce.Body != "" {
			return ce.Body
		}
		return fmt.Sprintf("server returned %d", ce.StatusCode)
	}
	return "connection failed"
}
