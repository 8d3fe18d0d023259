package domain

import (
	"errors"
	"time"
)

var ErrVerdictNotFound = errors.New("verdict not found")

// VerdictTypeGroupAuto tags verdicts written by the automatic group
// wake-up evaluation, as opposed to records written by other flows.
const VerdictTypeGroupAuto = "group_wakeup_auto"

// GroupVerdictReason is the fixed reason attached to automatic verdicts.
const GroupVerdictReason = "group wake-up attendance check"

// Verdict is the persisted per-user-per-date attendance outcome.
// The durable log upserts by (User, Date); a later write for the same
// key overwrites the earlier one.
type Verdict struct {
	User         UserID    `json:"user"`
	Date         string    `json:"date"` // YYYY-MM-DD in the service zone
	Success      bool      `json:"success"`
	Type         string    `json:"type"`
	WakeTime     string    `json:"wake_time"` // YYYY-MM-DD HH:MM
	Reason       string    `json:"reason"`
	Participants []UserID  `json:"participants"`
	RecordedAt   time.Time `json:"recorded_at"`
}
