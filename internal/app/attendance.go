package app

import (
	"sync"
	"time"

	"github.com/jegalhhh/morning-call/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// attendanceSession is one room's voice presence. Created on the first
// voice join; evaluated is set permanently by the evaluator.
type attendanceSession struct {
	present   map[domain.UserID]struct{}
	armedAt   time.Time
	evaluated bool
}

// AttendanceSnapshot is a read-only projection of a session.
type AttendanceSnapshot struct {
	Present   []domain.UserID
	ArmedAt   time.Time
	Evaluated bool
}

// Tracker owns per-room voice-channel presence. The first Join for a
// room arms its evaluation; arming happens inside the same critical
// section that creates the session, so N concurrent first joins
// schedule exactly once.
type Tracker struct {
	mu       sync.Mutex
	sessions map[domain.RoomCode]*attendanceSession
	sched    *Scheduler
	now      func() time.Time
}

func NewTracker(sched *Scheduler) *Tracker {
	return &Tracker{
		sessions: make(map[domain.RoomCode]*attendanceSession),
		sched:    sched,
		now:      time.Now,
	}
}

// Join idempotently marks the user present in the room's voice channel.
func (t *Tracker) Join(room domain.RoomCode, user domain.UserID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[room]
	if !ok {
		sess = &attendanceSession{
			present: make(map[domain.UserID]struct{}),
			armedAt: t.now(),
		}
		t.sessions[room] = sess
		t.sched.Arm(room)
		log.Info().Str("module", "app.attendance").Str("room", string(room)).Msg("first voice join, evaluation armed")
	}
	sess.present[user] = struct{}{}
	log.Debug().Str("module", "app.attendance").Str("room", string(room)).Str("user", string(user)).Msg("voice join")
}

// Leave idempotently removes the user. It never un-arms or re-arms the
// evaluation.
func (t *Tracker) Leave(room domain.RoomCode, user domain.UserID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[room]
	if !ok {
		return
	}
	delete(sess.present, user)
	log.Debug().Str("module", "app.attendance").Str("room", string(room)).Str("user", string(user)).Msg("voice leave")
}

// CurrentMembers is the read-only projection used by the presence
// query; it does not touch evaluation state.
func (t *Tracker) CurrentMembers(room domain.RoomCode) []domain.UserID {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[room]
	if !ok {
		return nil
	}
	return lo.Keys(sess.present)
}

// Snapshot returns the present set and evaluation status for a room.
func (t *Tracker) Snapshot(room domain.RoomCode) (AttendanceSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[room]
	if !ok {
		return AttendanceSnapshot{}, false
	}
	return AttendanceSnapshot{
		Present:   lo.Keys(sess.present),
		ArmedAt:   sess.armedAt,
		Evaluated: sess.evaluated,
	}, true
}

// markEvaluated is the evaluator's check-and-set. It returns the
// present set at fire time and whether this caller won the flag;
// a second call for the same room always loses.
func (t *Tracker) markEvaluated(room domain.RoomCode) ([]domain.UserID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[room]
	if !ok || sess.evaluated {
		return nil, false
	}
	sess.evaluated = true
	return lo.Keys(sess.present), true
}
