package socket

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errFakeClosed = errors.New("fake transport closed")

type fakeTransport struct {
	inbound   chan []byte
	done      chan struct{}
	closeOnce sync.Once
	reason    error

	mu   sync.Mutex
	sent [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (t *fakeTransport) Send(data []byte) error {
	select {
	case <-t.done:
		return errFakeClosed
	default:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Receive() ([]byte, error) {
	select {
	case data := <-t.inbound:
		return data, nil
	case <-t.done:
		return nil, t.reason
	}
}

func (t *fakeTransport) Close() error {
	t.drop(errFakeClosed)
	return nil
}

// drop ends the connection as if the server went away.
func (t *fakeTransport) drop(err error) {
	t.closeOnce.Do(func() {
		t.reason = err
		close(t.done)
	})
}

func (t *fakeTransport) closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *fakeTransport) push(frame string) {
	t.inbound <- []byte(frame)
}

func (t *fakeTransport) written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	for i, b := range t.sent {
		out[i] = string(b)
	}
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeTransport
	fail  error
}

func (d *fakeDialer) Dial(_ context.Context, rawURL string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, rawURL)
	if d.fail != nil {
		return nil, d.fail
	}
	t := newFakeTransport()
	d.conns = append(d.conns, t)
	return t, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

func (d *fakeDialer) lastConn() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeTimer struct {
	clock   *fakeClock
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock records scheduled delays and only runs callbacks on Fire.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

// Fire runs the oldest live timer and reports whether there was one.
func (c *fakeClock) Fire() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	c.mu.Unlock()

	if next == nil {
		return false
	}
	next.f()
	return true
}

// FireLate runs the oldest timer even if it was stopped, like a
// time.AfterFunc callback that had already started when Stop was called.
func (c *fakeClock) FireLate() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	c.mu.Unlock()

	if next == nil {
		return false
	}
	next.f()
	return true
}

func (c *fakeClock) Scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

func (c *fakeClock) Pending() int {
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

// recorder collects handler calls from client goroutines.
type recorder struct {
	mu    sync.Mutex
	calls map[Event][]interface{}
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[Event][]interface{})}
}

func (r *recorder) handler(event Event) Handler {
	return func(data interface{}) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls[event] = append(r.calls[event], data)
	}
}

func (r *recorder) count(event Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[event])
}

func (r *recorder) last(event Event) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls[event]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}
