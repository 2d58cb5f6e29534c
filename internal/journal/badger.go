package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
)

const keyPrefix = "execgroup/"

// BadgerStore keeps journal entries in a local BadgerDB with
// synchronous writes, so Append is durable before it returns.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the journal database at dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.SyncWrites = true
	// Badger's own logger is noisy at INFO; DB errors still surface
	// through returned errors.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Append(e Entry) error {
	if e.GroupID == "" {
		return errors.New("execution group id is empty")
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == StatusUnknown {
		e.Status = StatusInProgress
	}

	key := entryKey(e.GroupID)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrDuplicateGroup
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) UpdateStatus(groupID string, status Status) error {
	key := entryKey(groupID)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUnknownGroup
		}
		if err != nil {
			return err
		}
		var e Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		}); err != nil {
			return err
		}
		e.Status = status
		e.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) Get(groupID string) (Entry, error) {
	var e Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(groupID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUnknownGroup
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	return e, err
}

func (s *BadgerStore) ListByStatus(statuses ...Status) ([]Entry, error) {
	want := make(map[Status]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}

	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			if _, ok := want[e.Status]; ok || len(want) == 0 {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func entryKey(groupID string) []byte {
	return []byte(keyPrefix + groupID)
}
