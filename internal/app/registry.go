package app

import (
	"sync"

	"github.com/jegalhhh/morning-call/internal/core"
	"github.com/jegalhhh/morning-call/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomSessions holds one room's live chat connections in registration
// order. sendMu serializes broadcasts for the room so every recipient
// observes concurrent messages in the same relative order.
type roomSessions struct {
	sendMu sync.Mutex
	conns  []core.ChatConnection
}

// Registry is the in-memory map of live chat connections per room.
// It owns membership only; transport resources belong to the adapters.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*roomSessions
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomCode]*roomSessions)}
}

func (r *Registry) Register(room domain.RoomCode, conn core.ChatConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.rooms[room]
	if !ok {
		rs = &roomSessions{}
		r.rooms[room] = rs
	}
	rs.conns = append(rs.conns, conn)
	log.Info().Str("module", "app.registry").Str("room", string(room)).Int("count", len(rs.conns)).Msg("connection registered")
}

// Unregister is a silent no-op for an unknown room or an absent
// connection; the transport layer may deliver duplicate disconnects.
func (r *Registry) Unregister(room domain.RoomCode, conn core.ChatConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.rooms[room]
	if !ok {
		return
	}
	for i, c := range rs.conns {
		if c == conn {
			rs.conns = append(rs.conns[:i], rs.conns[i+1:]...)
			break
		}
	}
	if len(rs.conns) == 0 {
		delete(r.rooms, room)
	}
	log.Info().Str("module", "app.registry").Str("room", string(room)).Msg("connection unregistered")
}

// Connections returns a snapshot copy in registration order. The live
// set may change as soon as the lock is released.
func (r *Registry) Connections(room domain.RoomCode) []core.ChatConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.rooms[room]
	if !ok {
		return nil
	}
	out := make([]core.ChatConnection, len(rs.conns))
	copy(out, rs.conns)
	return out
}

func (r *Registry) Count(room domain.RoomCode) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.rooms[room]
	if !ok {
		return 0
	}
	return len(rs.conns)
}

func (r *Registry) sessionsOf(room domain.RoomCode) *roomSessions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[room]
}
