package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jegalhhh/morning-call/internal/config"
)

// SetupRouter wires HTTP routes (REST + WS).
// - Static files are served from cfg.StaticPath.
// - REST is under /api/*
// - WebSocket upgrade lives at /api/rooms/:code/chat
func SetupRouter(ctx context.Context, cfg *config.Config, api *API) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	pub := r.Group("/api")
	pub.POST("/signup", api.Signup)
	pub.POST("/login", api.Login)
	pub.GET("/users/:username/attendance", api.UserAttendance)

	priv := r.Group("/api")
	priv.Use(api.AuthRequired())

	priv.POST("/rooms", api.CreateRoom)
	priv.GET("/rooms", api.ListRooms)
	priv.GET("/rooms/:code", api.GetRoom)
	priv.POST("/rooms/:code/join", api.JoinRoom)

	priv.GET("/rooms/:code/chat", api.ChatWS(ctx))

	priv.POST("/rooms/:code/voice/join", api.VoiceJoin)
	priv.POST("/rooms/:code/voice/leave", api.VoiceLeave)
	priv.GET("/rooms/:code/voice/members", api.VoiceMembers)
	priv.POST("/rooms/:code/wakeup", api.WakeUp)

	return r
}
