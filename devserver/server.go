// Package devserver is a local stand-in for the quiz server's WebSocket
// routes. It is meant for development and integration tests.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// By default use the global logger
var logger = log.Logger

func SetLogger(newLogger zerolog.Logger) {
	logger = newLogger
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleQM      Role = "qm"
	RoleTeam    Role = "team"
	RoleDisplay Role = "display"
)

func (r Role) valid() bool {
	switch r {
	case RoleAdmin, RoleQM, RoleTeam, RoleDisplay:
		return true
	}
	return false
}

// Authorizer decides whether token may join session as role. Display
// connections are never checked.
type Authorizer func(role Role, session, token string) bool

// RequireToken accepts any non-empty token.
func RequireToken(_ Role, _ string, token string) bool {
	return token != ""
}

// StaticToken accepts exactly want.
func StaticToken(want string) Authorizer {
	return func(_ Role, _ string, token string) bool {
		return token == want
	}
}

type Config struct {
	WriteTimeout time.Duration
	BufferSize   int
	Authorizer   Authorizer
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		BufferSize:   100,
		Authorizer:   RequireToken,
	}
}

type ServerOption func(*Config)

func WithAuthorizer(a Authorizer) ServerOption {
	return func(c *Config) {
		c.Authorizer = a
	}
}

func WithBufferSize(size int) ServerOption {
	return func(c *Config) {
		c.BufferSize = size
	}
}

func WithWriteTimeout(d time.Duration) ServerOption {
	return func(c *Config) {
		c.WriteTimeout = d
	}
}

type Server struct {
	mu    sync.RWMutex
	peers map[string]*peer
	wg    sync.WaitGroup

	rooms    *RoomManager
	cfg      Config
	router   *mux.Router
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewServer(opts ...ServerOption) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		peers: make(map[string]*peer),
		rooms: NewRoomManager(),
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now: time.Now,
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc("/ws/{role}/{session}", s.handleSocket)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	role := Role(vars["role"])
	session := vars["session"]

	if !role.valid() {
		http.Error(w, "Unknown role", http.StatusNotFound)
		return
	}
	if role != RoleDisplay && !s.cfg.Authorizer(role, session, r.URL.Query().Get("token")) {
		logger.Warn().Str("role", string(role)).Str("session", session).Msg("rejected socket without valid token")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	p := newPeer(uuid.NewString(), session, role, conn, s.cfg)
	s.register(p)
	defer s.unregister(p)

	for {
		data, err := p.Read()
		if err != nil {
			return
		}
		s.handleFrame(p, data)
	}
}

func (s *Server) register(p *peer) {
	s.mu.Lock()
	s.peers[p.id] = p
	s.wg.Add(1)
	s.mu.Unlock()

	s.rooms.join(p)
	logger.Info().Str("peer", p.id).Str("role", string(p.role)).Str("session", p.session).Msg("peer connected")
}

func (s *Server) unregister(p *peer) {
	s.rooms.leave(p)

	s.mu.Lock()
	_, exists := s.peers[p.id]
	delete(s.peers, p.id)
	s.mu.Unlock()

	p.Close()
	if exists {
		s.wg.Done()
	}
	logger.Info().Str("peer", p.id).Msg("peer disconnected")
}

type teamAction struct {
	Action   string      `json:"action"`
	TeamID   interface{} `json:"team_id"`
	DeviceID interface{} `json:"device_id"`
}

func (s *Server) handleFrame(p *peer, data []byte) {
	switch p.role {
	case RoleAdmin, RoleQM:
		s.send(p, map[string]interface{}{"event": "pong", "data": string(data)})
	case RoleTeam:
		var msg teamAction
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn().Err(err).Str("peer", p.id).Msg("invalid team frame")
			return
		}
		if msg.Action != "buzz" {
			return
		}
		timestamp := s.now().UTC().Format(time.RFC3339Nano)
		update := map[string]interface{}{
			"event":     "buzzer.update",
			"team_id":   msg.TeamID,
			"timestamp": timestamp,
		}
		s.Broadcast(p.session, RoleQM, update)
		s.Broadcast(p.session, RoleDisplay, update)
		s.send(p, map[string]interface{}{"event": "buzz.confirmed", "timestamp": timestamp})
	case RoleDisplay:
	}
}

func (s *Server) send(p *peer, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Msg("could not encode frame")
		return
	}
	p.Write(data)
}

// Broadcast sends payload to every peer of role in session, or to all roles
// when role is empty. It returns the number of peers addressed.
func (s *Server) Broadcast(session string, role Role, payload interface{}) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode broadcast: %w", err)
	}

	roles := []Role{role}
	if role == "" {
		roles = []Role{RoleAdmin, RoleQM, RoleTeam, RoleDisplay}
	}

	sent := 0
	for _, r := range roles {
		if room, ok := s.rooms.lookup(roomName(session, r)); ok {
			sent += room.broadcast(data)
		}
	}
	logger.Debug().Str("session", session).Str("role", string(role)).Int("peers", sent).Msg("broadcast")
	return sent, nil
}

// Kick drops the matching connections without a close frame. An empty role
// matches every role.
func (s *Server) Kick(session string, role Role) int {
	kicked := 0
	for _, p := range s.rooms.all() {
		if p.session == session && (role == "" || p.role == role) {
			p.Kick()
			kicked++
		}
	}
	return kicked
}

func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.peers)
}

func (s *Server) Rooms() []string {
	return s.rooms.Rooms()
}

// Shutdown closes every connection and waits for their handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		if err := p.Close(); err != nil {
			logger.Debug().Err(err).Str("peer", p.id).Msg("error closing peer")
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
