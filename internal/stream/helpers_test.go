package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rivetr/rivetr-console/internal/models"
)

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock records timers; tests fire them explicitly
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.delay)
	}
	return out
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fireLast runs the newest timer, even if it was stopped, to simulate a
// callback racing a cancellation
func (c *fakeClock) fireLast() bool {
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		return false
	}
	t := c.timers[len(c.timers)-1]
	t.fired = true
	c.mu.Unlock()
	t.fn()
	return true
}

// recorder is an Observer that keeps every notification
type recorder struct {
	mu      sync.Mutex
	states  []State
	lengths []int
}

func (r *recorder) StateChanged(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) BufferChanged(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lengths = append(r.lengths, n)
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Phase, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Phase)
	}
	return out
}

// phasesSince returns the phases recorded after the first n notifications
func (r *recorder) phasesSince(n int) []Phase {
	all := r.phases()
	if n > len(all) {
		return nil
	}
	return all[n:]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recorder) saw(p Phase) bool {
	for _, got := range r.phases() {
		if got == p {
			return true
		}
	}
	return false
}

// fakeConn is fed by the test through push and fail
type fakeConn struct {
	msgs   chan models.StreamMessage
	errs   chan error
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []models.Outbound
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:   make(chan models.StreamMessage, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) push(m models.StreamMessage) { c.msgs <- m }
func (c *fakeConn) fail(err error)              { c.errs <- err }

func (c *fakeConn) Next() (models.StreamMessage, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// abortConn blocks in Next until it is closed, then fails with a
// transport error instead of ErrClosed
type abortConn struct {
	*fakeConn
}

func (c abortConn) Next() (models.StreamMessage, error) {
	<-c.closed
	return nil, io.ErrUnexpectedEOF
}

// droppingConn reports a fixed number of skipped frames
type droppingConn struct {
	*fakeConn
	dropped int
}

func (c droppingConn) Dropped() int { return c.dropped }

// fakeDuplex adds Send to fakeConn
type fakeDuplex struct {
	*fakeConn
}

func (c fakeDuplex) Send(out models.Outbound) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, out)
	return nil
}

// fakeDialer answers dials with the queued outcomes; with an empty queue it
// blocks until the context is cancelled
type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	outcomes chan dialOutcome
}

type dialOutcome struct {
	conn Conn
	err  error
}

var errRefused = errors.New("connection refused")

func newFakeDialer() *fakeDialer {
	return &fakeDialer{outcomes: make(chan dialOutcome, 16)}
}

func (d *fakeDialer) Endpoint() string { return "fake://stream" }

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	select {
	case o := <-d.outcomes:
		return o.conn, o.err
	case <-ctx.Done():
		return nil, &ConnectionError{Kind: KindAborted, Endpoint: d.Endpoint(), Err: ctx.Err()}
	}
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// lateDialer hands out a live connection only after its context is
// cancelled, like a handshake that completes while the caller gives up
type lateDialer struct {
	started chan struct{}
	conn    *fakeConn
	once    sync.Once
}

func newLateDialer() *lateDialer {
	return &lateDialer{started: make(chan struct{}), conn: newFakeConn()}
}

func (d *lateDialer) Endpoint() string { return "fake://late" }

func (d *lateDialer) Dial(ctx context.Context) (Conn, error) {
	d.once.Do(func() { close(d.started) })
	<-ctx.Done()
	return d.conn, nil
}

func (d *fakeDialer) succeed(c Conn) { d.outcomes <- dialOutcome{conn: c} }

func (d *fakeDialer) refuse() {
	d.outcomes <- dialOutcome{err: &ConnectionError{Kind: KindNetwork, Endpoint: d.Endpoint(), Err: errRefused}}
}
