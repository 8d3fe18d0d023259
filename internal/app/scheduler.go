package app

import (
	"sync"
	"time"

	"github.com/jegalhhh/morning-call/internal/domain"
	"github.com/rs/zerolog/log"
)

// Scheduler defers one evaluation per room. Arm is at-most-once per key
// for the process lifetime, and the timer is deliberately not
// cancellable: the grace delay models "did everyone show up for a
// while", not "is everyone present right now".
type Scheduler struct {
	mu    sync.Mutex
	delay time.Duration
	fire  func(domain.RoomCode)
	armed map[domain.RoomCode]struct{}
}

func NewScheduler(delay time.Duration, fire func(domain.RoomCode)) *Scheduler {
	return &Scheduler{
		delay: delay,
		fire:  fire,
		armed: make(map[domain.RoomCode]struct{}),
	}
}

// Arm schedules the room's evaluation after the configured delay.
// Returns false if the room was already armed.
func (s *Scheduler) Arm(room domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.armed[room]; ok {
		return false
	}
	s.armed[room] = struct{}{}
	time.AfterFunc(s.delay, func() { s.fire(room) })
	log.Info().Str("module", "app.scheduler").Str("room", string(room)).Dur("delay", s.delay).Msg("evaluation scheduled")
	return true
}

// Armed reports whether the room has a scheduled (or fired) evaluation.
func (s *Scheduler) Armed(room domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[room]
	return ok
}
