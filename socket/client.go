package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kleeedolinux/resocket/auth"
	"github.com/kleeedolinux/resocket/socket/transport"
)

// By default use the global logger
var logger = log.Logger

func SetLogger(newLogger zerolog.Logger) {
	logger = newLogger
}

// Client keeps one event connection alive, reconnecting with exponential
// backoff after unexpected closes. Handlers are never run concurrently.
type Client struct {
	mu       sync.Mutex
	dispatch sync.Mutex

	id       string
	baseURL  string
	endpoint string

	tokens      auth.Store
	dialer      Dialer
	wsOpts      []transport.WebSocketOption
	clock       Clock
	backoff     Backoff
	dialTimeout time.Duration
	limiter     *rate.Limiter
	metrics     *Metrics
	log         zerolog.Logger

	handlers  map[Event]Handler
	conn      Transport
	connected bool
	closing   bool
	attempts  int
	gen       uint64
	timer     Timer
}

type ClientOption func(*Client)

func WithTokenStore(store auth.Store) ClientOption {
	return func(c *Client) {
		c.tokens = store
	}
}

func WithDialer(d Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithWebSocketOptions configures the default WebSocket dialer. It has no
// effect when WithDialer is also given.
func WithWebSocketOptions(opts ...transport.WebSocketOption) ClientOption {
	return func(c *Client) {
		c.wsOpts = append(c.wsOpts, opts...)
	}
}

func WithClock(clock Clock) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

func WithBackoff(b Backoff) ClientOption {
	return func(c *Client) {
		c.backoff = b
	}
}

func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff.Base = d
	}
}

func WithMaxReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff.Max = d
	}
}

func WithReconnectAttempts(attempts int) ClientOption {
	return func(c *Client) {
		c.backoff.MaxAttempts = attempts
	}
}

func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// WithSendRateLimit drops outbound frames beyond limit per second, allowing
// bursts of burst frames.
func WithSendRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient prepares a client for endpoint (a path such as "/ws/team/4") on
// the server at baseURL ("https://quiz.example.com"). Nothing is dialed until
// Connect.
func NewClient(baseURL, endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		id:          generateID(),
		baseURL:     baseURL,
		endpoint:    endpoint,
		tokens:      auth.NewMemoryStore(""),
		clock:       realClock{},
		backoff:     DefaultBackoff(),
		dialTimeout: 15 * time.Second,
		handlers:    make(map[Event]Handler),
	}
	c.log = logger

	for _, opt := range opts {
		opt(c)
	}

	if c.dialer == nil {
		ws := transport.NewWebSocketDialer(c.wsOpts...)
		c.dialer = DialerFunc(func(ctx context.Context, rawURL string) (Transport, error) {
			t, err := ws.Dial(ctx, rawURL)
			if err != nil {
				return nil, err
			}
			return t, nil
		})
	}
	c.log = c.log.With().Str("client", c.id).Str("endpoint", endpoint).Logger()

	return c
}

func (c *Client) ID() string {
	return c.id
}

// Connect starts a connection attempt and returns without waiting for it.
// The outcome arrives as EventOpen, or EventError followed by EventClose. Any
// existing connection is dropped and replaced, and a pending reconnect is
// cancelled.
func (c *Client) Connect() error {
	if _, err := WebSocketURL(c.baseURL, c.endpoint, ""); err != nil {
		return err
	}

	c.mu.Lock()
	c.closing = false
	c.attempts = 0
	c.stopTimerLocked()
	old := c.conn
	c.conn = nil
	c.connected = false
	gen := c.nextGenLocked()
	c.mu.Unlock()

	if old != nil {
		c.log.Debug().Msg("replacing existing connection")
		old.Close()
	}

	go c.dial(gen)
	return nil
}

func (c *Client) nextGenLocked() uint64 {
	c.gen++
	return c.gen
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	defer cancel()

	token, err := c.tokens.Get(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("could not read bearer token, connecting without one")
		token = ""
	}

	target, err := WebSocketURL(c.baseURL, c.endpoint, token)
	if err != nil {
		c.dialFailed(gen, err)
		return
	}

	c.log.Debug().Msg("dialing")
	conn, err := c.dialer.Dial(ctx, target)
	if err != nil {
		c.dialFailed(gen, err)
		return
	}

	c.opened(gen, conn)
}

func (c *Client) opened(gen uint64, conn Transport) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	if gen != c.gen || c.closing {
		c.mu.Unlock()
		c.log.Debug().Msg("discarding connection that is no longer wanted")
		conn.Close()
		return
	}
	old := c.conn
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.mu.Unlock()

	if old != nil && old != conn {
		c.log.Debug().Msg("replacing existing connection")
		old.Close()
	}

	c.metrics.setConnected(true)
	c.log.Info().Msg("socket connected")

	go c.readLoop(conn)
	c.emit(EventOpen, nil)
}

func (c *Client) dialFailed(gen uint64, err error) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		c.log.Debug().Err(err).Msg("ignoring failure of superseded dial")
		return
	}

	c.log.Error().Err(err).Msg("socket error")
	c.emit(EventError, err)
	c.afterClose(err)
}

func (c *Client) readLoop(conn Transport) {
	for {
		data, err := conn.Receive()
		if err != nil {
			c.readerClosed(conn, err)
			return
		}
		c.deliver(conn, data)
	}
}

func (c *Client) readerClosed(conn Transport, err error) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	closing := c.closing
	c.mu.Unlock()

	if closing {
		err = nil
	} else if transport.IsUnexpectedClose(err) {
		c.log.Warn().Err(err).Msg("connection lost")
	}
	c.afterClose(err)
}

// afterClose runs with the dispatch lock held. A Connect or Close made by
// the close handler takes precedence over the scheduled reconnect.
func (c *Client) afterClose(err error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	c.metrics.setConnected(false)
	c.log.Info().Msg("socket closed")
	c.emit(EventClose, err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing || c.gen != gen {
		return
	}
	if !c.backoff.Allows(c.attempts) {
		c.log.Warn().Int("attempts", c.attempts).Msg("giving up on reconnecting")
		return
	}

	c.attempts++
	delay := c.backoff.Delay(c.attempts)
	c.metrics.reconnect()
	c.log.Info().Int("attempt", c.attempts).Dur("delay", delay).Msg("reconnecting")
	c.stopTimerLocked()
	c.timer = c.clock.AfterFunc(delay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	c.timer = nil
	if c.closing {
		c.mu.Unlock()
		return
	}
	gen := c.nextGenLocked()
	c.mu.Unlock()

	c.dial(gen)
}

func (c *Client) deliver(conn Transport, data []byte) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	current := c.conn == conn
	c.mu.Unlock()
	if !current {
		return
	}

	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil || value == nil {
		if err == nil {
			err = ErrInvalidMessage
		}
		c.log.Error().Err(err).Msg("error parsing socket message")
		c.metrics.dropped("invalid")
		return
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		c.metrics.received(EventMessage)
		c.emit(EventMessage, value)
		return
	}

	payload := Payload(obj)
	event := payload.Event()
	c.metrics.received(event)

	if event != "" && !event.Reserved() {
		c.emit(event, payload)
	}
	c.emit(EventMessage, payload)
}

// emit runs with the dispatch lock held.
func (c *Client) emit(event Event, data interface{}) {
	c.mu.Lock()
	handler := c.handlers[event]
	c.mu.Unlock()

	if handler != nil {
		handler(data)
	}
}

// On registers handler for event, replacing any previous one.
func (c *Client) On(event Event, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[event] = handler
}

func (c *Client) Off(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.handlers, event)
}

// Send encodes v as JSON and writes it when the connection is open. It
// reports whether the frame was written; failures are logged, never returned.
func (c *Client) Send(v interface{}) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		c.log.Warn().Msg("socket is not connected, dropping frame")
		c.metrics.dropped("not_connected")
		return false
	}

	if c.limiter != nil && !c.limiter.Allow() {
		c.log.Warn().Msg("send rate exceeded, dropping frame")
		c.metrics.dropped("rate_limited")
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Msg("could not encode frame")
		c.metrics.dropped("encode")
		return false
	}

	if err := conn.Send(data); err != nil {
		c.log.Error().Err(err).Msg("socket write failed")
		c.metrics.dropped("write")
		go c.reportError(conn, err)
		return false
	}
	return true
}

func (c *Client) reportError(conn Transport, err error) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	current := c.conn == conn
	c.mu.Unlock()
	if current {
		c.emit(EventError, err)
	}
}

// Close shuts the connection down and cancels any pending reconnect. No
// reconnect follows until Connect is called again.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closing = true
	c.stopTimerLocked()
	c.nextGenLocked()
	conn := c.conn
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.log.Debug().Msg("closing socket")
	return conn.Close()
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// Attempts is the number of reconnects made since the last successful open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attempts
}
