package devserver

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kleeedolinux/resocket/debug"
)

// peer is one accepted connection with its own write pump.
type peer struct {
	id      string
	session string
	role    Role

	conn         *websocket.Conn
	sendCh       chan []byte
	closeCh      chan struct{}
	writeWg      sync.WaitGroup
	writeTimeout time.Duration
	mu           sync.Mutex
	closed       bool
}

func newPeer(id, session string, role Role, conn *websocket.Conn, cfg Config) *peer {
	p := &peer{
		id:           id,
		session:      session,
		role:         role,
		conn:         conn,
		sendCh:       make(chan []byte, cfg.BufferSize),
		closeCh:      make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
	}

	p.writeWg.Add(1)
	go p.writePump()

	return p
}

func (p *peer) writePump() {
	defer p.writeWg.Done()

	for {
		select {
		case <-p.closeCh:
			return
		case message := <-p.sendCh:
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				return
			}

			if p.writeTimeout > 0 {
				p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			}

			err := p.conn.WriteMessage(websocket.TextMessage, message)
			p.mu.Unlock()

			if err != nil {
				go p.Close()
				return
			}
		}
	}
}

func (p *peer) Read() ([]byte, error) {
	_, message, err := p.conn.ReadMessage()
	if err != nil {
		debug.Printf("devserver peer %s: Error reading message: %v", p.id, err)
		return nil, err
	}
	return message, nil
}

func (p *peer) Write(data []byte) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		debug.Printf("devserver peer %s: Attempted to write to closed connection", p.id)
		return
	}

	select {
	case p.sendCh <- data:
	default:
		debug.Printf("devserver peer %s: Send buffer full, closing connection", p.id)
		go p.Close()
	}
}

// Close says goodbye with a normal closure frame.
func (p *peer) Close() error {
	return p.shutdown(true)
}

// Kick drops the TCP connection without a close frame, which clients see as
// an abnormal closure.
func (p *peer) Kick() error {
	return p.shutdown(false)
}

func (p *peer) shutdown(graceful bool) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}

	p.closed = true
	close(p.closeCh)
	p.mu.Unlock()

	if graceful {
		p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
	}

	p.writeWg.Wait()
	return p.conn.Close()
}
