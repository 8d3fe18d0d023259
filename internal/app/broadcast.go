package app

import (
	"encoding/json"
	"time"

	"github.com/jegalhhh/morning-call/internal/core"
	"github.com/jegalhhh/morning-call/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	// TimeLayoutMinute is the civil-time format used for system events
	// and wake times; TimeLayoutSecond is used on relayed chat messages.
	TimeLayoutMinute = "2006-01-02 15:04"
	TimeLayoutSecond = "2006-01-02 15:04:05"
)

const (
	EventTypeSystem      = "system"
	EventTypeWakeUpStart = "wake_up_start"
)

// SystemEvent is the tagged envelope for server-originated announcements.
type SystemEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Broadcaster fans a payload out to every connection registered for a
// room. Delivery to each connection is independent: a dead or slow peer
// is logged and skipped, never surfaced to the caller.
type Broadcaster struct {
	Registry *Registry
	Loc      *time.Location
	Now      func() time.Time
}

func NewBroadcaster(reg *Registry, loc *time.Location) *Broadcaster {
	return &Broadcaster{Registry: reg, Loc: loc, Now: time.Now}
}

// Broadcast marshals payload once and delivers the frame to the room.
func (b *Broadcaster) Broadcast(room domain.RoomCode, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Str("room", string(room)).Msg("marshal broadcast payload")
		return
	}
	b.BroadcastFrame(room, data)
}

// BroadcastFrame delivers a pre-serialized frame. The registry snapshot
// is taken under the registry lock; the sends happen outside of it,
// serialized per room by the room's send mutex.
func (b *Broadcaster) BroadcastFrame(room domain.RoomCode, frame core.Frame) {
	rs := b.Registry.sessionsOf(room)
	if rs == nil {
		return
	}
	rs.sendMu.Lock()
	defer rs.sendMu.Unlock()

	sent, dropped := 0, 0
	for _, conn := range b.Registry.Connections(room) {
		if err := conn.TrySend(frame); err != nil {
			dropped++
			log.Warn().Err(err).Str("module", "app.broadcast").Str("room", string(room)).Msg("frame dropped, leaving connection for disconnect reaping")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.broadcast").Str("room", string(room)).Int("sent", sent).Int("dropped", dropped).Msg("broadcast result")
}

// System emits a tagged system announcement (join/leave and friends).
func (b *Broadcaster) System(room domain.RoomCode, message string) {
	b.Broadcast(room, SystemEvent{
		Type:      EventTypeSystem,
		Message:   message,
		Timestamp: b.Timestamp(TimeLayoutMinute),
	})
}

// WakeUp emits the wake_up_start trigger; fired by a room-owner action,
// not by the attendance evaluator.
func (b *Broadcaster) WakeUp(room domain.RoomCode, message string) {
	b.Broadcast(room, SystemEvent{
		Type:      EventTypeWakeUpStart,
		Message:   message,
		Timestamp: b.Timestamp(TimeLayoutMinute),
	})
}

func (b *Broadcaster) Timestamp(layout string) string {
	return b.Now().In(b.Loc).Format(layout)
}
