package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jegalhhh/morning-call/internal/app"
	"github.com/jegalhhh/morning-call/internal/core"
	"github.com/jegalhhh/morning-call/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")

	errNoType = errors.New("missing or non-string type field")
)

// FallbackName is shown when the identity store cannot resolve the
// caller; identity-store failure never blocks the connection.
const FallbackName = "unknown"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatConn is one live chat connection. Frames are queued on a bounded
// buffer so a slow consumer never stalls a broadcast. The send channel
// is never closed; the write pump exits through context cancellation,
// which keeps TrySend safe against a concurrent Close.
type chatConn struct {
	conn   *websocket.Conn
	send   chan core.Frame
	closed atomic.Bool
	once   sync.Once
}

func (c *chatConn) TrySend(f core.Frame) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *chatConn) Close() {
	c.once.Do(func() {
		c.closed.Store(true)
		_ = c.conn.Close()
	})
}

// Controller runs the per-connection chat protocol: join announcement,
// message relay with server stamping, leave announcement on disconnect.
type Controller struct {
	Registry   *app.Registry
	Broadcast  *app.Broadcaster
	Identity   core.IdentityStore
	ReadLimit  int64
	PingPeriod time.Duration
	Loc        *time.Location
	Now        func() time.Time
}

// HandleChat upgrades the request and starts the connection's pumps.
// The principal is already verified; user arrives as trusted input.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context, room domain.RoomCode, user domain.UserID) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("room", string(room)).Msg("ws upgrade failed")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &chatConn{
		conn: ws,
		send: make(chan core.Frame, 64),
	}

	profile := ctl.resolve(user)

	ctl.Registry.Register(room, conn)
	ctl.Broadcast.System(room, fmt.Sprintf("%s joined the room", profile.Name))

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, cancel, room, profile, conn)
}

// resolve looks the principal up for a display name and avatar. On any
// failure it falls back to a placeholder and moves on.
func (ctl *Controller) resolve(user domain.UserID) domain.Profile {
	profile, err := ctl.Identity.Profile(user)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("user", string(user)).Msg("identity lookup failed, using fallback name")
		return domain.Profile{Username: user, Name: FallbackName}
	}
	return profile
}

func (ctl *Controller) writePump(ctx context.Context, c *chatConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump relays inbound messages until disconnect or protocol
// violation. On exit the connection is unregistered and the leave
// announcement carries the same name resolved at join.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, room domain.RoomCode, profile domain.Profile, c *chatConn) {
	defer func() {
		cancel()
		ctl.Registry.Unregister(room, c)
		ctl.Broadcast.System(room, fmt.Sprintf("%s left the room", profile.Name))
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("room", string(room)).Msg("readPump read error")
				return
			}
			if err := ctl.relay(room, profile, data); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Str("room", string(room)).Str("user", string(profile.Username)).Msg("protocol violation, closing connection")
				return
			}
		}
	}
}

// relay stamps an inbound message and rebroadcasts it. The payload is
// an open envelope: only the type discriminant is required, unknown
// fields pass through untouched.
func (ctl *Controller) relay(room domain.RoomCode, profile domain.Profile, data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed chat payload: %w", err)
	}
	if t, ok := msg["type"].(string); !ok || t == "" {
		return errNoType
	}

	msg["timestamp"] = ctl.now().In(ctl.Loc).Format(app.TimeLayoutSecond)
	if profile.ProfileImage != "" {
		msg["profile_image"] = profile.ProfileImage
	}

	ctl.Broadcast.Broadcast(room, msg)
	return nil
}

func (ctl *Controller) now() time.Time {
	if ctl.Now != nil {
		return ctl.Now()
	}
	return time.Now()
}

func (ctl *Controller) pingPeriod() time.Duration {
	if ctl.PingPeriod > 0 {
		return ctl.PingPeriod
	}
	return 54 * time.Second
}
