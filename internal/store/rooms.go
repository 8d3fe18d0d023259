package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/jegalhhh/morning-call/internal/domain"
)

const roomPrefix = "room:"

type RoomDirectory struct {
	db *badger.DB
}

func NewRoomDirectory(db *badger.DB) *RoomDirectory {
	return &RoomDirectory{db: db}
}

func roomKey(code domain.RoomCode) []byte {
	return []byte(roomPrefix + string(code))
}

func (s *RoomDirectory) Create(room domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := roomKey(room.Code)
		if _, err := txn.Get(key); err == nil {
			return domain.ErrRoomExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *RoomDirectory) Get(code domain.RoomCode) (domain.Room, error) {
	var room domain.Room
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(code))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &room)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// AppendParticipant adds the user to the room's expected participant
// list. Appending an existing participant is a no-op.
func (s *RoomDirectory) AppendParticipant(code domain.RoomCode, user domain.UserID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := roomKey(code)
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var room domain.Room
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &room)
		}); err != nil {
			return err
		}
		if room.HasParticipant(user) {
			return nil
		}
		room.Participants = append(room.Participants, user)
		data, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("marshal room: %w", err)
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrRoomNotFound
	}
	return err
}

func (s *RoomDirectory) List() ([]domain.Room, error) {
	var rooms []domain.Room
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(roomPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room domain.Room
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &room)
			}); err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}
