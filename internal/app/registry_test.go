package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jegalhhh/morning-call/internal/core"
	"github.com/jegalhhh/morning-call/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) received() []core.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func TestRegistry_RegisterUnregister_NoLeak(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	room := domain.RoomCode("alpha")
	conn := &fakeConn{}

	// Given an empty room
	req.Zero(reg.Count(room))

	// When a connection registers and unregisters
	reg.Register(room, conn)
	req.Equal(1, reg.Count(room))
	reg.Unregister(room, conn)

	// Then the room is back to its prior state
	req.Zero(reg.Count(room))
	req.Empty(reg.Connections(room))
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	room := domain.RoomCode("alpha")
	conn := &fakeConn{}

	reg.Register(room, conn)
	reg.Unregister(room, conn)
	// Duplicate disconnect delivery from the transport.
	reg.Unregister(room, conn)
	// Unknown room is a no-op too.
	reg.Unregister(domain.RoomCode("ghost"), conn)

	req.Zero(reg.Count(room))
}

func TestRegistry_Connections_PreservesOrder(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	room := domain.RoomCode("alpha")
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}

	reg.Register(room, a)
	reg.Register(room, b)
	reg.Register(room, c)
	reg.Unregister(room, b)

	conns := reg.Connections(room)
	req.Len(conns, 2)
	req.Same(a, conns[0].(*fakeConn))
	req.Same(c, conns[1].(*fakeConn))
}

func TestBroadcaster_DeliversToRoomOnly(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	b := NewBroadcaster(reg, time.UTC)

	alpha1, alpha2 := &fakeConn{}, &fakeConn{}
	beta := &fakeConn{}
	reg.Register("alpha", alpha1)
	reg.Register("alpha", alpha2)
	reg.Register("beta", beta)

	b.Broadcast("alpha", map[string]string{"type": "chat", "message": "hi"})

	req.Len(alpha1.received(), 1)
	req.Len(alpha2.received(), 1)
	req.Empty(beta.received())
}

func TestBroadcaster_DeadConnectionIsIsolated(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	b := NewBroadcaster(reg, time.UTC)

	dead := &fakeConn{full: true}
	live := &fakeConn{}
	reg.Register("alpha", dead)
	reg.Register("alpha", live)

	b.Broadcast("alpha", map[string]string{"type": "chat"})

	// The failed send neither raised nor blocked delivery to the peer.
	req.Len(live.received(), 1)
	req.Empty(dead.received())
}

func TestBroadcaster_SystemEventShape(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	b := NewBroadcaster(reg, time.UTC)
	b.Now = func() time.Time { return time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC) }

	conn := &fakeConn{}
	reg.Register("alpha", conn)
	b.System("alpha", "alice joined the room")

	frames := conn.received()
	req.Len(frames, 1)
	var ev SystemEvent
	req.NoError(json.Unmarshal(frames[0], &ev))
	req.Equal(EventTypeSystem, ev.Type)
	req.Equal("alice joined the room", ev.Message)
	req.Equal("2026-03-02 07:30", ev.Timestamp)
}

func TestBroadcaster_WakeUpEvent(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	b := NewBroadcaster(reg, time.UTC)

	conn := &fakeConn{}
	reg.Register("alpha", conn)
	b.WakeUp("alpha", "wake-up call started")

	frames := conn.received()
	req.Len(frames, 1)
	var ev SystemEvent
	req.NoError(json.Unmarshal(frames[0], &ev))
	req.Equal(EventTypeWakeUpStart, ev.Type)
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	room := domain.RoomCode("alpha")

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := &fakeConn{}
			reg.Register(room, conn)
			reg.Unregister(room, conn)
		}()
	}
	wg.Wait()

	req.Zero(reg.Count(room))
}
