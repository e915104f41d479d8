package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rivetr/rivetr-console/internal/models"
)

const sseReadSize = 4 * 1024

// SSEDialer opens a receive-only stream over chunked HTTP. The body is a
// sequence of "data: <json>" lines.
type SSEDialer struct {
	URL        string
	Token      string
	HTTPClient *http.Client // nil uses a client without timeout
}

// NewSSEDialer creates a dialer for url authenticated with token
func NewSSEDialer(url, token string) *SSEDialer {
	return &SSEDialer{URL: url, Token: token}
}

// Endpoint returns the stream URL
func (d *SSEDialer) Endpoint() string {
	return redact(d.URL)
}

// Dial performs the request and returns once response headers arrive
func (d *SSEDialer) Dial(ctx context.Context) (Conn, error) {
	// The connection gets its own context so Close can abort a blocked read
	connCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, d.URL, nil)
	if err != nil {
		cancel()
		return nil, &ConnectionError{Kind: KindNetwork, Endpoint: d.Endpoint(), Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}

	client := d.HTTPClient
	if client == nil {
		// No timeout - streams are long-lived
		client = &http.Client{}
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, classify(ctx, d.Endpoint(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ce := statusError(d.Endpoint(), resp, nil)
		_ = resp.Body.Close()
		cancel()
		return nil, ce
	}

	return &sseConn{body: resp.Body, cancel: cancel, closed: make(chan struct{})}, nil
}

// sseConn reads raw chunks and feeds them through a LineDecoder
type sseConn struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	decoder LineDecoder
	queue   []models.StreamMessage
	buf     [sseReadSize]byte
	dropped atomic.Int64 // mirrors decoder.Dropped for other goroutines

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *sseConn) Next() (models.StreamMessage, error) {
	for len(c.queue) == 0 {
		n, err := c.body.Read(c.buf[:])
		if n > 0 {
			c.queue = append(c.queue, c.decoder.Feed(c.buf[:n])...)
			c.dropped.Store(int64(c.decoder.Dropped()))
		}
		if err != nil {
			if len(c.queue) > 0 {
				break
			}
			select {
			case <-c.closed:
				return nil, ErrClosed
			default:
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
	}

	msg := c.queue[0]
	c.queue = c.queue[1:]
	return msg, nil
}

// Dropped returns how many data lines failed to parse
func (c *sseConn) Dropped() int {
	return int(c.dropped.Load())
}

func (c *sseConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
		err = c.body.Close()
	})
	return err
}
