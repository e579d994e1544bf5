package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/kleeedolinux/resocket/debug"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("not connected")

// WebSocketDialer opens client WebSocket connections. Each successful Dial
// returns a new WebSocketTransport.
type WebSocketDialer struct {
	dialer           *websocket.Dialer
	headers          http.Header
	handshakeTimeout time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	pingInterval     time.Duration
	compression      bool
}

type WebSocketOption func(*WebSocketDialer)

func WithHeaders(headers http.Header) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.headers = headers
	}
}

func WithHandshakeTimeout(timeout time.Duration) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.handshakeTimeout = timeout
	}
}

// WithReadTimeout closes the connection when nothing, not even a pong,
// arrives within timeout. Zero disables the deadline.
func WithReadTimeout(timeout time.Duration) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.readTimeout = timeout
	}
}

// WithPingInterval sends a ping every interval so the server's pongs keep the
// read deadline moving. It defaults to nine tenths of the read timeout; a
// negative interval disables pings.
func WithPingInterval(interval time.Duration) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.pingInterval = interval
	}
}

func WithWriteTimeout(timeout time.Duration) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.writeTimeout = timeout
	}
}

func WithCompression(enabled bool) WebSocketOption {
	return func(d *WebSocketDialer) {
		d.compression = enabled
	}
}

func NewWebSocketDialer(opts ...WebSocketOption) *WebSocketDialer {
	d := &WebSocketDialer{
		dialer:           websocket.DefaultDialer,
		headers:          make(http.Header),
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     10 * time.Second,
	}

	for _, opt := range opts {
		opt(d)
	}
	if d.readTimeout > 0 && d.pingInterval == 0 {
		d.pingInterval = d.readTimeout * 9 / 10
	}

	return d
}

func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (*WebSocketTransport, error) {
	dialer := *d.dialer
	dialer.HandshakeTimeout = d.handshakeTimeout
	dialer.EnableCompression = d.compression

	debug.Printf("WebSocketTransport: Dialing %s", redact(rawURL))

	conn, resp, err := dialer.DialContext(ctx, rawURL, d.headers)
	if err != nil {
		if resp != nil {
			debug.Printf("WebSocketTransport: Handshake rejected with status %d", resp.StatusCode)
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		debug.Printf("WebSocketTransport: Connection failed: %v", err)
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	debug.Printf("WebSocketTransport: Connected successfully")
	return newWebSocketTransport(conn, d.readTimeout, d.writeTimeout, d.pingInterval), nil
}

// WebSocketTransport is a single client connection. Send is safe for
// concurrent use; Receive must only be called from one goroutine.
type WebSocketTransport struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	done         chan struct{}
}

func newWebSocketTransport(conn *websocket.Conn, readTimeout, writeTimeout, pingInterval time.Duration) *WebSocketTransport {
	t := &WebSocketTransport{
		conn:         conn,
		connected:    true,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}

	if readTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}
	if pingInterval > 0 {
		go t.pingLoop(pingInterval)
	}

	return t
}

func (t *WebSocketTransport) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.mu.Lock()
			if !t.connected {
				t.mu.Unlock()
				return
			}
			err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeDeadline()))
			t.mu.Unlock()
			if err != nil {
				debug.Printf("WebSocketTransport: Ping failed: %v", err)
				return
			}
		}
	}
}

func (t *WebSocketTransport) writeDeadline() time.Duration {
	if t.writeTimeout > 0 {
		return t.writeTimeout
	}
	return 10 * time.Second
}

func (t *WebSocketTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return ErrNotConnected
	}

	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			debug.Printf("WebSocketTransport: Error setting write deadline: %v", err)
			return err
		}
	}

	debug.Printf("WebSocketTransport: Sending data: %s", string(data))
	err := t.conn.WriteMessage(websocket.TextMessage, data)
	if err != nil {
		debug.Printf("WebSocketTransport: Send error: %v", err)
	}
	return err
}

func (t *WebSocketTransport) Receive() ([]byte, error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := t.conn

	if t.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			t.mu.Unlock()
			debug.Printf("WebSocketTransport: Error setting read deadline: %v", err)
			return nil, err
		}
	}
	t.mu.Unlock()

	_, message, err := conn.ReadMessage()
	if err != nil {
		debug.Printf("WebSocketTransport: Read error: %v", err)
		return nil, err
	}

	debug.Printf("WebSocketTransport: Received data: %s", string(message))
	return message, nil
}

// Close sends a normal closure frame and closes the connection. A pending
// Receive returns with an error.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}

	debug.Printf("WebSocketTransport: Closing connection")
	close(t.done)

	err := t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err != nil {
		debug.Printf("WebSocketTransport: Error sending close message: %v", err)
	}

	err = t.conn.Close()
	if err != nil {
		debug.Printf("WebSocketTransport: Error closing connection: %v", err)
	}

	t.connected = false

	return err
}

// IsUnexpectedClose reports whether err ended a connection with anything
// other than a normal or going-away closure.
func IsUnexpectedClose(err error) bool {
	if err == nil {
		return false
	}
	return websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// redact hides the token query parameter so URLs can be logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
