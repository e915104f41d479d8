package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rivetr/rivetr-console/internal/models"
)

var (
	// ErrClosed is returned when sending on a connection that has been closed
	ErrClosed = errors.New("stream: connection closed")

	// ErrNotDuplex is returned when sending on a receive-only stream
	ErrNotDuplex = errors.New("stream: transport is receive-only")

	// ErrNotConnected is returned when sending while no connection is open
	ErrNotConnected = errors.New("stream: not connected")
)

// ErrorKind classifies why a handshake failed
type ErrorKind int

const (
	KindNetwork ErrorKind = iota // DNS, TCP, TLS failures
	KindStatus                   // non-2xx response or refused upgrade
	KindAborted                  // caller cancelled the dial
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ConnectionError is returned by Dial when the stream could not be opened
type ConnectionError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Endpoint   string
	Err        error
}

func (e *ConnectionError) Error() string {
	switch e.Kind {
	case KindStatus:
		msg := fmt.Sprintf("stream %s: status %d", e.Endpoint, e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	case KindAborted:
		return fmt.Sprintf("stream %s: aborted", e.Endpoint)
	default:
		return fmt.Sprintf("stream %s: %v", e.Endpoint, e.Err)
	}
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsAborted reports whether err is a caller-initiated abort. Aborts must not
// be retried.
func IsAborted(err error) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Kind == KindAborted
	}
	return errors.Is(err, context.Canceled)
}

// Dialer opens one stream. Implementations must honour ctx cancellation
// during the handshake and report it as KindAborted.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	Endpoint() string
}

// Conn is an open receive stream
type Conn interface {
	// Next blocks until the next decoded message. Malformed frames are skipped
	// internally. io.EOF means the remote end closed the stream normally.
	Next() (models.StreamMessage, error)

	// Close cancels any in-flight Next and releases the socket. Safe to call
	// more than once.
	Close() error
}

// dropCounter is implemented by connections that skip malformed frames
type dropCounter interface {
	Dropped() int
}

// DuplexConn is a Conn that can also send frames
type DuplexConn interface {
	Conn
	Send(out models.Outbound) error
}

// classify maps a dial failure to a ConnectionError
func classify(ctx context.Context, endpoint string, err error) *ConnectionError {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &ConnectionError{Kind: KindAborted, Endpoint: endpoint, Err: err}
	}
	return &ConnectionError{Kind: KindNetwork, Endpoint: endpoint, Err: err}
}

// statusError builds a KindStatus error from a failed response, keeping a
// short excerpt of the body.
func statusError(endpoint string, resp *http.Response, err error) *ConnectionError {
	ce := &ConnectionError{
		Kind:       KindStatus,
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		Err:        err,
	}
	if resp.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		ce.Body = strings.TrimSpace(string(body))
	}
	return ce
}

// redact hides the token query parameter from endpoints that end up in logs
func redact(endpoint string) string {
	idx := strings.Index(endpoint, "token=")
	if idx < 0 {
		return endpoint
	}
	end := strings.IndexByte(endpoint[idx:], '&')
	if end < 0 {
		return endpoint[:idx] + "token=REDACTED"
	}
	return endpoint[:idx] + "token=REDACTED" + endpoint[idx+end:]
}
