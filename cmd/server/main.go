package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/jegalhhh/morning-call/internal/adapters/http"
	"github.com/jegalhhh/morning-call/internal/adapters/ws"
	"github.com/jegalhhh/morning-call/internal/app"
	"github.com/jegalhhh/morning-call/internal/config"
	"github.com/jegalhhh/morning-call/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}
	loc := cfg.Location()

	db, err := store.Open(cfg.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open data store")
	}
	defer db.Close()

	identity := store.NewIdentityStore(db)
	rooms := store.NewRoomDirectory(db)
	attendance := store.NewAttendanceLog(db)

	registry := app.NewRegistry()
	broadcaster := app.NewBroadcaster(registry, loc)

	evaluator := &app.Evaluator{Rooms: rooms, Log: attendance, Loc: loc}
	scheduler := app.NewScheduler(cfg.GracePeriod, evaluator.Evaluate)
	tracker := app.NewTracker(scheduler)
	evaluator.Tracker = tracker

	chat := &ws.Controller{
		Registry:   registry,
		Broadcast:  broadcaster,
		Identity:   identity,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		Loc:        loc,
	}

	api := &router.API{
		Cfg:        cfg,
		Identity:   identity,
		Rooms:      rooms,
		Attendance: attendance,
		Tracker:    tracker,
		Broadcast:  broadcaster,
		Chat:       chat,
		Loc:        loc,
	}

	r := router.SetupRouter(ctx, cfg, api)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("morning-call server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
