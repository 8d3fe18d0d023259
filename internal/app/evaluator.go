package app

import (
	"time"

	"github.com/jegalhhh/morning-call/internal/core"
	"github.com/jegalhhh/morning-call/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Evaluator reconciles a room's voice presence at fire time against the
// room directory's expected participant list and writes one verdict per
// expected participant into the durable attendance log.
//
// It runs detached from any request; nothing here returns an error to
// an external caller.
type Evaluator struct {
	Tracker *Tracker
	Rooms   core.RoomDirectory
	Log     core.AttendanceLog
	Loc     *time.Location
	Now     func() time.Time
}

// Evaluate fires at most once per room. Re-entry for an already
// evaluated room is a no-op by contract, not an error.
func (e *Evaluator) Evaluate(code domain.RoomCode) {
	present, won := e.Tracker.markEvaluated(code)
	if !won {
		log.Debug().Str("module", "app.evaluator").Str("room", string(code)).Msg("already evaluated, skipping")
		return
	}

	room, err := e.Rooms.Get(code)
	if err != nil {
		// No verdict is better than a wrong one tied to a deleted room.
		log.Warn().Err(err).Str("module", "app.evaluator").Str("room", string(code)).Msg("room lookup failed, no verdicts written")
		return
	}

	allPresent := sameMembers(room.Participants, present)
	date := room.WakeDate(e.Loc)
	wake := room.WakeTime.In(e.Loc).Format(TimeLayoutMinute)
	now := e.now()

	written := 0
	for _, user := range room.Participants {
		v := domain.Verdict{
			User:         user,
			Date:         date,
			Success:      allPresent,
			Type:         domain.VerdictTypeGroupAuto,
			WakeTime:     wake,
			Reason:       domain.GroupVerdictReason,
			Participants: room.Participants,
			RecordedAt:   now,
		}
		if err := e.Log.Upsert(v); err != nil {
			// One failing write must not block the siblings, and the
			// evaluation is never re-run for it.
			log.Error().Err(err).Str("module", "app.evaluator").Str("room", string(code)).Str("user", string(user)).Msg("verdict write failed")
			continue
		}
		written++
	}

	log.Info().Str("module", "app.evaluator").Str("room", string(code)).
		Bool("all_present", allPresent).
		Int("expected", len(room.Participants)).
		Int("present", len(present)).
		Int("written", written).
		Msg("room evaluated")
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// sameMembers is exact set equality: an absentee or an unexpected extra
// presence both fail the room.
func sameMembers(expected, present []domain.UserID) bool {
	exp := lo.Uniq(expected)
	if len(exp) != len(present) {
		return false
	}
	return lo.Every(exp, present)
}
