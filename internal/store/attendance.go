package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/jegalhhh/morning-call/internal/domain"
)

const attendancePrefix = "attendance:"

// AttendanceLog stores one verdict per (user, date). Upsert is
// last-writer-wins: a later record for the same key replaces the
// earlier one.
type AttendanceLog struct {
	db *badger.DB
}

func NewAttendanceLog(db *badger.DB) *AttendanceLog {
	return &AttendanceLog{db: db}
}

func verdictKey(user domain.UserID, date string) []byte {
	return []byte(attendancePrefix + string(user) + ":" + date)
}

func (s *AttendanceLog) Upsert(v domain.Verdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(verdictKey(v.User, v.Date), data)
	})
}

func (s *AttendanceLog) Get(user domain.UserID, date string) (domain.Verdict, error) {
	var v domain.Verdict
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(verdictKey(user, date))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Verdict{}, domain.ErrVerdictNotFound
	}
	if err != nil {
		return domain.Verdict{}, err
	}
	return v, nil
}

func (s *AttendanceLog) ListByUser(user domain.UserID) ([]domain.Verdict, error) {
	var out []domain.Verdict
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(attendancePrefix + string(user) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v domain.Verdict
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}
