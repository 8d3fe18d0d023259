package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/jegalhhh/morning-call/internal/adapters/ws"
	"github.com/jegalhhh/morning-call/internal/app"
	"github.com/jegalhhh/morning-call/internal/auth"
	"github.com/jegalhhh/morning-call/internal/config"
	"github.com/jegalhhh/morning-call/internal/core"
	"github.com/jegalhhh/morning-call/internal/domain"
)

// API bundles the handlers' collaborators. Everything behind it is
// either the realtime core or one of the embedded stores.
type API struct {
	Cfg        *config.Config
	Identity   core.IdentityStore
	Rooms      core.RoomDirectory
	Attendance core.AttendanceLog
	Tracker    *app.Tracker
	Broadcast  *app.Broadcaster
	Chat       *ws.Controller
	Loc        *time.Location
}

type signupRequest struct {
	Phone      string `json:"phone"`
	Name       string `json:"name" binding:"required"`
	StudentID  string `json:"student_id"`
	Department string `json:"department"`
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

func (a *API) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signup payload"})
		return
	}

	user, err := domain.NewUser(domain.UserID(req.Username), req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user.Phone = req.Phone
	user.StudentID = req.StudentID
	user.Department = req.Department

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	if err := a.Identity.Create(*user, hash); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username already taken"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("signup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "signup success"})
}

func (a *API) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login payload"})
		return
	}

	user, hash, err := a.Identity.GetByUsername(domain.UserID(req.Username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown username"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("login lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if !auth.CheckPassword(hash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}

	token, err := auth.GenerateToken(user.Username, []byte(a.Cfg.Secret), a.Cfg.TokenTTL)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "login success", "token": token})
}

// AuthRequired resolves the principal from a Bearer header; websocket
// clients can't set headers, so a token query parameter is accepted too.
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" || raw == c.GetHeader("Authorization") {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ValidateToken(raw, []byte(a.Cfg.Secret))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("user", claims.Username)
		c.Next()
	}
}

func (a *API) principal(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString("user"))
}

type createRoomRequest struct {
	Title      string `json:"title" binding:"required"`
	WakeTime   string `json:"wake_time" binding:"required"`
	Visibility string `json:"visibility"`
}

func (a *API) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room payload"})
		return
	}
	wake, err := time.ParseInLocation(app.TimeLayoutMinute, req.WakeTime, a.Loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wake_time must be YYYY-MM-DD HH:MM"})
		return
	}
	visibility := domain.Visibility(req.Visibility)
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}

	owner := a.principal(c)
	room := domain.Room{
		Code:       domain.RoomCode(uuid.NewString()[:8]),
		Title:      req.Title,
		Owner:      owner,
		WakeTime:   wake,
		Visibility: visibility,
		// Creator is auto-added; the participant list is never empty.
		Participants: []domain.UserID{owner},
		CreatedAt:    time.Now(),
	}
	if err := a.Rooms.Create(room); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("room create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room create failed"})
		return
	}
	c.JSON(http.StatusOK, a.roomView(room))
}

func (a *API) ListRooms(c *gin.Context) {
	rooms, err := a.Rooms.List()
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("room list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room list failed"})
		return
	}
	open := lo.Filter(rooms, func(r domain.Room, _ int) bool {
		return r.Visibility == domain.VisibilityPublic
	})
	c.JSON(http.StatusOK, gin.H{"rooms": lo.Map(open, func(r domain.Room, _ int) gin.H {
		return a.roomView(r)
	})})
}

func (a *API) GetRoom(c *gin.Context) {
	room, ok := a.roomOr404(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.roomView(room))
}

func (a *API) JoinRoom(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))
	if err := a.Rooms.AppendParticipant(code, a.principal(c)); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("room join failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room join failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "joined"})
}

// ChatWS hands the connection to the chat controller once the caller
// is confirmed to be a room participant.
func (a *API) ChatWS(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, user, ok := a.participantOr403(c)
		if !ok {
			return
		}
		a.Chat.HandleChat(ctx, c, room.Code, user)
	}
}

func (a *API) VoiceJoin(c *gin.Context) {
	room, user, ok := a.participantOr403(c)
	if !ok {
		return
	}
	a.Tracker.Join(room.Code, user)
	c.JSON(http.StatusOK, gin.H{"msg": "voice joined"})
}

func (a *API) VoiceLeave(c *gin.Context) {
	room, user, ok := a.participantOr403(c)
	if !ok {
		return
	}
	a.Tracker.Leave(room.Code, user)
	c.JSON(http.StatusOK, gin.H{"msg": "voice left"})
}

func (a *API) VoiceMembers(c *gin.Context) {
	room, ok := a.roomOr404(c)
	if !ok {
		return
	}
	snap, _ := a.Tracker.Snapshot(room.Code)
	members := lo.Map(snap.Present, func(u domain.UserID, _ int) domain.Profile {
		profile, err := a.Identity.Profile(u)
		if err != nil {
			return domain.Profile{Username: u, Name: ws.FallbackName}
		}
		return profile
	})
	c.JSON(http.StatusOK, gin.H{"members": members, "evaluated": snap.Evaluated})
}

// WakeUp fires the wake_up_start broadcast. Owner action, never the
// evaluator's.
func (a *API) WakeUp(c *gin.Context) {
	room, ok := a.roomOr404(c)
	if !ok {
		return
	}
	if room.Owner != a.principal(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the room owner can start the wake-up call"})
		return
	}
	a.Broadcast.WakeUp(room.Code, "wake-up call started")
	c.JSON(http.StatusOK, gin.H{"msg": "wake-up broadcast sent"})
}

func (a *API) UserAttendance(c *gin.Context) {
	user := domain.UserID(c.Param("username"))
	if date := c.Query("date"); date != "" {
		v, err := a.Attendance.Get(user, date)
		if err != nil {
			if errors.Is(err, domain.ErrVerdictNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no record for that date"})
				return
			}
			log.Error().Err(err).Str("module", "adapters.http").Msg("attendance lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance lookup failed"})
			return
		}
		c.JSON(http.StatusOK, v)
		return
	}
	list, err := a.Attendance.ListByUser(user)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("attendance list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": list})
}

func (a *API) roomOr404(c *gin.Context) (domain.Room, bool) {
	room, err := a.Rooms.Get(domain.RoomCode(c.Param("code")))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		} else {
			log.Error().Err(err).Str("module", "adapters.http").Msg("room lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "room lookup failed"})
		}
		return domain.Room{}, false
	}
	return room, true
}

func (a *API) participantOr403(c *gin.Context) (domain.Room, domain.UserID, bool) {
	room, ok := a.roomOr404(c)
	if !ok {
		return domain.Room{}, "", false
	}
	user := a.principal(c)
	if !room.HasParticipant(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return domain.Room{}, "", false
	}
	return room, user, true
}

func (a *API) roomView(r domain.Room) gin.H {
	return gin.H{
		"code":         r.Code,
		"title":        r.Title,
		"owner":        r.Owner,
		"wake_time":    r.WakeTime.In(a.Loc).Format(app.TimeLayoutMinute),
		"visibility":   r.Visibility,
		"participants": r.Participants,
		"count":        len(r.Participants),
	}
}
