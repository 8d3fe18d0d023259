package core

import "github.com/jegalhhh/morning-call/internal/domain"

// Frame is one serialized wire message.
type Frame []byte

// ChatConnection abstracts a chat transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type ChatConnection interface {
	// TrySend queues a frame without blocking; a full outbound buffer
	// returns an error and the frame is dropped for this peer only.
	TrySend(Frame) error
	Close()
}

// IdentityStore resolves principals to profile attributes.
type IdentityStore interface {
	Create(u domain.User, passwordHash string) error
	GetByUsername(username domain.UserID) (domain.User, string, error)
	Profile(username domain.UserID) (domain.Profile, error)
}

// RoomDirectory owns room metadata. AppendParticipant is idempotent.
type RoomDirectory interface {
	Create(room domain.Room) error
	Get(code domain.RoomCode) (domain.Room, error)
	AppendParticipant(code domain.RoomCode, user domain.UserID) error
	List() ([]domain.Room, error)
}

// AttendanceLog is the durable upsert-by-(user, date) verdict store.
// It is the only persisted artifact of an evaluation.
type AttendanceLog interface {
	Upsert(v domain.Verdict) error
	Get(user domain.UserID, date string) (domain.Verdict, error)
	ListByUser(user domain.UserID) ([]domain.Verdict, error)
}
