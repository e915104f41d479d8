package stream

import (
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// MaxAttemptsMessage is the visible error once automatic retries stop
const MaxAttemptsMessage = "Max reconnection attempts reached"

// Phase is the coarse connection state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseOpen
	PhaseReconnecting
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseOpen:
		return "open"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the connection state of one stream. RetryIn is only set while
// Reconnecting.
type State struct {
	Phase   Phase
	Attempt int
	Err     string
	RetryIn time.Duration
}

func (s State) String() string {
	switch s.Phase {
	case PhaseReconnecting:
		return fmt.Sprintf("reconnecting(%d) in %s", s.Attempt, s.RetryIn)
	case PhaseFailed:
		return "failed: " + s.Err
	default:
		return s.Phase.String()
	}
}

// Connected reports whether the stream is open
func (s State) Connected() bool {
	return s.Phase == PhaseOpen
}

// Badge is the label shown next to a stream
func (s State) Badge() string {
	switch s.Phase {
	case PhaseOpen:
		return "Live"
	case PhaseReconnecting:
		return "Reconnecting"
	case PhaseFailed:
		return "Error"
	default:
		return "Disconnected"
	}
}

// CanReconnect reports whether a manual reconnect should be offered: not
// connected and not waiting on a backoff timer.
func (s State) CanReconnect() bool {
	return s.Phase == PhaseIdle || s.Phase == PhaseFailed
}

// Controller owns State and the retry schedule. It is not safe for concurrent
// use; a Session drives it from its event loop.
type Controller struct {
	policy   Policy
	clock    Clock
	fire     func(seq uint64)
	onChange func(State)

	state   State
	backoff retry.Backoff
	timer   Timer
	seq     uint64
}

// NewController creates a controller in PhaseIdle. fire is called from the
// timer goroutine with the sequence of the retry that became due; the owner
// must hand it back through RetryDue on its own goroutine.
func NewController(policy Policy, clock Clock, fire func(seq uint64), onChange func(State)) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	return &Controller{
		policy:   policy.Normalized(),
		clock:    clock,
		fire:     fire,
		onChange: onChange,
		backoff:  policy.Backoff(),
	}
}

// State returns the current state
func (c *Controller) State() State {
	return c.state
}

// Policy returns the retry bounds in use
func (c *Controller) Policy() Policy {
	return c.policy
}

// Start moves Idle to Connecting. It reports false in any other phase.
func (c *Controller) Start() bool {
	if c.state.Phase != PhaseIdle {
		return false
	}
	c.reset()
	c.set(State{Phase: PhaseConnecting})
	return true
}

// Manual is a user-requested reconnect. It leaves Failed, Reconnecting or
// Idle for Connecting and resets the attempt count. It is a no-op while a
// connection is being opened or is open.
func (c *Controller) Manual() bool {
	switch c.state.Phase {
	case PhaseConnecting, PhaseOpen:
		return false
	}
	c.reset()
	c.set(State{Phase: PhaseConnecting})
	return true
}

// RetryDue moves Reconnecting to Connecting if seq is the pending retry.
// Timers that fire after a teardown, a manual reconnect or a newer schedule
// carry a stale seq and are ignored.
func (c *Controller) RetryDue(seq uint64) bool {
	if c.state.Phase != PhaseReconnecting || seq != c.seq || c.timer == nil {
		return false
	}
	c.timer = nil
	c.set(State{Phase: PhaseConnecting, Attempt: c.state.Attempt, Err: c.state.Err})
	return true
}

// Opened records a successful handshake
func (c *Controller) Opened() {
	if c.state.Phase != PhaseConnecting {
		return
	}
	c.reset()
	c.set(State{Phase: PhaseOpen})
}

// Lost records a stream termination that was not caller-initiated and
// schedules the next attempt, or moves to Failed once the retry budget is
// spent. It reports whether a retry was scheduled.
func (c *Controller) Lost(reason string) bool {
	if c.state.Phase != PhaseConnecting && c.state.Phase != PhaseOpen {
		return false
	}
	c.stopTimer()

	delay, stop := c.backoff.Next()
	if stop {
		c.set(State{Phase: PhaseFailed, Attempt: c.state.Attempt, Err: MaxAttemptsMessage})
		return false
	}

	attempt := c.state.Attempt + 1
	c.seq++
	seq := c.seq
	c.timer = c.clock.AfterFunc(delay, func() {
		if c.fire != nil {
			c.fire(seq)
		}
	})
	c.set(State{Phase: PhaseReconnecting, Attempt: attempt, Err: reason, RetryIn: delay})
	return true
}

// Teardown cancels any pending retry and returns to Idle. It always wins over
// a scheduled reconnect.
func (c *Controller) Teardown() {
	c.stopTimer()
	if c.state.Phase == PhaseIdle {
		return
	}
	c.set(State{Phase: PhaseIdle})
}

func (c *Controller) reset() {
	c.stopTimer()
	c.backoff = c.policy.Backoff()
}

func (c *Controller) stopTimer() {
	// Bumping seq also invalidates a callback that already fired and is
	// waiting to be delivered
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) set(s State) {
	c.state = s
	if c.onChange != nil {
		c.onChange(s)
	}
}
