package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rivetr/rivetr-console/internal/models"
)

const (
	wsHandshakeTimeout = 15 * time.Second
	wsWriteTimeout     = 10 * time.Second
)

// WebSocketDialer opens a stream over a WebSocket. The token travels in the
// query string because browser clients cannot set headers on the upgrade;
// the bearer header is sent as well for proxies that check it.
type WebSocketDialer struct {
	URL    string
	Token  string
	Dialer *websocket.Dialer // nil uses a copy of websocket.DefaultDialer
}

// NewWebSocketDialer creates a dialer for url authenticated with token
func NewWebSocketDialer(url, token string) *WebSocketDialer {
	return &WebSocketDialer{URL: url, Token: token}
}

// Endpoint returns the stream URL with the token redacted
func (d *WebSocketDialer) Endpoint() string {
	return redact(d.target())
}

func (d *WebSocketDialer) target() string {
	if d.Token == "" {
		return d.URL
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return d.URL
	}
	q := u.Query()
	q.Set("token", d.Token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Dial performs the upgrade. The returned Conn also implements DuplexConn.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dd := *websocket.DefaultDialer
		dd.HandshakeTimeout = wsHandshakeTimeout
		dialer = &dd
	}

	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, d.target(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, statusError(d.Endpoint(), resp, err)
		}
		return nil, classify(ctx, d.Endpoint(), err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	return &wsConn{conn: conn}, nil
}

// wsConn adapts a gorilla connection. gorilla allows one concurrent reader
// and one concurrent writer; writes are serialised by writeMu.
type wsConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
	dropped   atomic.Int64
}

func (c *wsConn) Next() (models.StreamMessage, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return nil, ErrClosed
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		msg, ok := ParseFrame(data)
		if !ok {
			c.dropped.Add(1)
			continue
		}
		return msg, nil
	}
}

// Dropped returns how many frames failed to parse
func (c *wsConn) Dropped() int {
	return int(c.dropped.Load())
}

// Send writes one JSON frame
func (c *wsConn) Send(out models.Outbound) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) isClosed() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.closed
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		// Best effort close handshake; the socket is torn down regardless
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
