package socket

import (
	"context"
	"errors"
)

type Event string

// Events raised by the client itself. Any other name is application defined
// and is matched against the "event" field of inbound payloads.
const (
	EventOpen    Event = "open"
	EventMessage Event = "message"
	EventError   Event = "error"
	EventClose   Event = "close"
)

// Reserved reports whether e is one of the client's own lifecycle events.
func (e Event) Reserved() bool {
	switch e {
	case EventOpen, EventMessage, EventError, EventClose:
		return true
	}
	return false
}

// Payload is a decoded inbound JSON object.
type Payload map[string]interface{}

// Event returns the payload's "event" field, or "" when it is missing or not
// a string.
func (p Payload) Event() Event {
	name, _ := p["event"].(string)
	return Event(name)
}

// Handler receives event data. For EventOpen it is nil and for application
// events a Payload. EventMessage gets a Payload for JSON objects and the
// decoded value ([]interface{}, float64, string or bool) for anything else.
// EventError gets an error, and EventClose the error that ended the
// connection (nil after a clean Close).
type Handler func(data interface{})

// Transport is one live connection. It is never reused once closed.
type Transport interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens a fresh Transport for every connection attempt.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Transport, error)
}

type DialerFunc func(ctx context.Context, rawURL string) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, rawURL string) (Transport, error) {
	return f(ctx, rawURL)
}

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrInvalidMessage   = errors.New("invalid message format")
	ErrInvalidEndpoint  = errors.New("invalid endpoint")
)
