package stream

import (
	"github.com/rivetr/rivetr-console/internal/models"
)

// Verdict is what routing one message asks of the session
type Verdict struct {
	Changed   bool   // the buffer was mutated
	Terminate bool   // the stream should be treated as lost
	Reason    string // visible error text when Terminate is set
}

// Router applies decoded messages to a Buffer
type Router interface {
	Route(msg models.StreamMessage) Verdict
	Buffer() *Buffer
}

// Mode selects the routing rules
type Mode int

const (
	ModeLogs Mode = iota
	ModeTerminal
	ModeBuildLogs
)

func (m Mode) String() string {
	switch m {
	case ModeLogs:
		return "logs"
	case ModeTerminal:
		return "terminal"
	case ModeBuildLogs:
		return "build-logs"
	default:
		return "unknown"
	}
}

// NewRouter returns the router for mode writing into buf
func NewRouter(mode Mode, buf *Buffer) Router {
	if mode == ModeTerminal {
		return &terminalRouter{buf: buf}
	}
	return &logRouter{buf: buf, replayed: mode == ModeBuildLogs}
}

// connectedBanner appends the "Connected to" line once per container
func connectedBanner(buf *Buffer, containerID string) bool {
	text := "Connected"
	if containerID != "" {
		text = "Connected to container " + containerID
		if buf.hasInfo(containerID) {
			return false
		}
	} else if buf.hasInfo(text) {
		return false
	}
	buf.Append(Entry{Kind: EntryInfo, Message: text})
	return true
}

// logRouter handles runtime and build logs. Build-log streams replay from
// the first line on every connection, so numbered lines already seen are
// skipped.
type logRouter struct {
	buf      *Buffer
	verdict  Verdict
	replayed bool
	lastID   int64
}

func (r *logRouter) Buffer() *Buffer { return r.buf }

func (r *logRouter) Route(msg models.StreamMessage) Verdict {
	r.verdict = Verdict{}
	msg.Accept(r)
	return r.verdict
}

func (r *logRouter) VisitConnected(m models.Connected) {
	r.verdict.Changed = connectedBanner(r.buf, m.ContainerID)
}

func (r *logRouter) VisitData(m models.Data) {
	// Output frames on a log stream are shown as plain lines
	r.buf.Append(Entry{Kind: EntryLog, Message: m.Payload})
	r.verdict.Changed = true
}

func (r *logRouter) VisitLog(m models.Log) {
	if r.replayed && m.ID != 0 {
		if m.ID <= r.lastID {
			return
		}
		r.lastID = m.ID
	}
	r.buf.Append(Entry{
		Kind:         EntryLog,
		ID:           m.ID,
		DeploymentID: m.DeploymentID,
		Message:      m.Message,
		Timestamp:    m.Timestamp,
		Stream:       m.Stream,
		Level:        m.Level,
	})
	r.verdict.Changed = true
}

func (r *logRouter) VisitError(m models.Error) {
	r.verdict.Terminate = true
	r.verdict.Reason = m.Message
	if r.verdict.Reason == "" {
		r.verdict.Reason = "stream error"
	}
}

func (r *logRouter) VisitEnd(m models.End) {
	if m.Message != "" {
		r.buf.Append(Entry{Kind: EntryInfo, Message: m.Message})
		r.verdict.Changed = true
	}
	r.verdict.Terminate = true
	r.verdict.Reason = m.Message
}

// terminalRouter handles interactive shells
type terminalRouter struct {
	buf     *Buffer
	verdict Verdict
}

func (r *terminalRouter) Buffer() *Buffer { return r.buf }

func (r *terminalRouter) Route(msg models.StreamMessage) Verdict {
	r.verdict = Verdict{}
	msg.Accept(r)
	return r.verdict
}

func (r *terminalRouter) VisitConnected(m models.Connected) {
	r.verdict.Changed = connectedBanner(r.buf, m.ContainerID)
}

func (r *terminalRouter) VisitData(m models.Data) {
	r.buf.Append(Entry{Kind: EntryOutput, Message: m.Payload})
	r.verdict.Changed = true
}

func (r *terminalRouter) VisitLog(m models.Log) {
	r.buf.Append(Entry{Kind: EntryOutput, Message: m.Message + "\n", Timestamp: m.Timestamp})
	r.verdict.Changed = true
}

func (r *terminalRouter) VisitError(m models.Error) {
	reason := m.Message
	if reason == "" {
		reason = "terminal error"
	}
	r.buf.Append(Entry{Kind: EntryError, Message: reason})
	r.verdict = Verdict{Changed: true, Terminate: true, Reason: reason}
}

func (r *terminalRouter) VisitEnd(m models.End) {
	text := m.Message
	if text == "" {
		text = "Session ended"
	}
	r.buf.Append(Entry{Kind: EntryInfo, Message: text})
	r.verdict = Verdict{Changed: true, Terminate: true, Reason: m.Message}
}
