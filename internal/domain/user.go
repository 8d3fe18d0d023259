// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUsernameLen = 36
	MaxNameLen     = 64
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrBadCredentials  = errors.New("bad credentials")
)

// UserID is the opaque principal the realtime core receives as input.
// It is the login username; authentication happens before the core is reached.
type UserID string

type User struct {
	ID           string `json:"id"`
	Username     UserID `json:"username"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	StudentID    string `json:"student_id,omitempty"`
	Department   string `json:"department,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	Reputation   int    `json:"reputation"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username UserID, name string) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{ID: uuid.NewString(), Username: username, Name: name}, nil
}

// Profile is the read-only view the chat handler needs: what to show
// next to a message. Everything else stays in the identity store.
type Profile struct {
	Username     UserID `json:"username"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image,omitempty"`
	Reputation   int    `json:"reputation"`
}

func (u *User) Profile() Profile {
	return Profile{
		Username:     u.Username,
		Name:         u.Name,
		ProfileImage: u.ProfileImage,
		Reputation:   u.Reputation,
	}
}
