package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jegalhhh/morning-call/internal/domain"
)

// userRecord is the on-disk shape of a user. The password hash never
// leaves the store except through GetByUsername for login checks.
type userRecord struct {
	domain.User
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type IdentityStore struct {
	db *badger.DB
}

func NewIdentityStore(db *badger.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func userKey(username domain.UserID) []byte {
	return []byte("user:" + string(username))
}

func (s *IdentityStore) Create(u domain.User, passwordHash string) error {
	rec := userRecord{User: u, PasswordHash: passwordHash, CreatedAt: time.Now()}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := userKey(u.Username)
		if _, err := txn.Get(key); err == nil {
			return domain.ErrUserExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *IdentityStore) GetByUsername(username domain.UserID) (domain.User, string, error) {
	var rec userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, "", domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, "", err
	}
	return rec.User, rec.PasswordHash, nil
}

func (s *IdentityStore) Profile(username domain.UserID) (domain.Profile, error) {
	u, _, err := s.GetByUsername(username)
	if err != nil {
		return domain.Profile{}, err
	}
	return u.Profile(), nil
}
