package devserver

import (
	"sync"
)

// Room groups the peers of one role in one quiz session.
type Room struct {
	name  string
	peers map[string]*peer
	mu    sync.RWMutex
}

func NewRoom(name string) *Room {
	return &Room{
		name:  name,
		peers: make(map[string]*peer),
	}
}

func roomName(session string, role Role) string {
	return session + ":" + string(role)
}

func (r *Room) add(p *peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.id] = p
}

func (r *Room) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) snapshot() []*peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]*peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

func (r *Room) broadcast(data []byte) int {
	peers := r.snapshot()
	for _, p := range peers {
		p.Write(data)
	}
	return len(peers)
}

type RoomManager struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
	}
}

func (rm *RoomManager) lookup(name string) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, exists := rm.rooms[name]
	return room, exists
}

// join adds p under rm.mu so a concurrent leave cannot drop the room
// between lookup and insert.
func (rm *RoomManager) join(p *peer) {
	name := roomName(p.session, p.role)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, exists := rm.rooms[name]
	if !exists {
		room = NewRoom(name)
		rm.rooms[name] = room
	}
	room.add(p)
}

func (rm *RoomManager) leave(p *peer) {
	name := roomName(p.session, p.role)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, exists := rm.rooms[name]
	if !exists {
		return
	}
	room.remove(p.id)
	if room.Count() == 0 {
		delete(rm.rooms, name)
	}
}

// Rooms lists the names of rooms that currently have peers.
func (rm *RoomManager) Rooms() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rooms := make([]string, 0, len(rm.rooms))
	for name := range rm.rooms {
		rooms = append(rooms, name)
	}

	return rooms
}

func (rm *RoomManager) all() []*peer {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.mu.RUnlock()

	var peers []*peer
	for _, room := range rooms {
		peers = append(peers, room.snapshot()...)
	}
	return peers
}
