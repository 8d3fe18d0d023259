package domain

import (
	"errors"
	"time"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomExists     = errors.New("room already exists")
	ErrNotParticipant = errors.New("not a room participant")
)

// RoomCode is the short opaque identifier a room is shared under.
type RoomCode string

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Room is a scheduled group wake-up session. Participants is append-only
// while the room is open and never empty: the creator is added on create.
type Room struct {
	Code         RoomCode   `json:"code"`
	Title        string     `json:"title"`
	Owner        UserID     `json:"owner"`
	WakeTime     time.Time  `json:"wake_time"`
	Visibility   Visibility `json:"visibility"`
	Participants []UserID   `json:"participants"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (r *Room) HasParticipant(user UserID) bool {
	for _, p := range r.Participants {
		if p == user {
			return true
		}
	}
	return false
}

// WakeDate is the calendar date the attendance verdicts are keyed by.
func (r *Room) WakeDate(loc *time.Location) string {
	return r.WakeTime.In(loc).Format("2006-01-02")
}
