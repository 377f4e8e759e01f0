// Package db stores catalog documents in BadgerDB
package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
)

// Open opens the Badger database at path, or an in-memory one when inMemory is set
func Open(path string, inMemory bool, log logger.Logger) (*badger.DB, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// badgerLogger routes Badger's own logging through the service logger
type badgerLogger struct {
	log logger.Logger
}

var badgerFields = map[string]interface{}{"component": "badger"}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), badgerFields)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), badgerFields)
}

// Infof is demoted; Badger reports compactions and replays at info level
func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), badgerFields)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), badgerFields)
}

// versioned is a document guarded by optimistic locking
type versioned interface {
	GetID() string
	GetVersion() int64
	SetVersion(v int64)
}

// getJSON decodes the value at key into out
func getJSON(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// putVersioned stores doc at key if its version matches the stored one, then bumps it.
// A zero version means the document must not exist yet.
func putVersioned(txn *badger.Txn, key []byte, doc versioned) error {
	var stored struct {
		Version int64 `json:"version"`
	}
	err := getJSON(txn, key, &stored)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		if doc.GetVersion() != 0 {
			return fmt.Errorf("%w: %s was removed", apperrors.ErrVersionConflict, doc.GetID())
		}
	case err != nil:
		return err
	case stored.Version != doc.GetVersion():
		return fmt.Errorf("%w: %s is at version %d, got %d",
			apperrors.ErrVersionConflict, doc.GetID(), stored.Version, doc.GetVersion())
	}

	doc.SetVersion(doc.GetVersion() + 1)
	data, err := json.Marshal(doc)
	if err != nil {
		doc.SetVersion(doc.GetVersion() - 1)
		return fmt.Errorf("failed to marshal %s: %w", doc.GetID(), err)
	}
	return txn.Set(key, data)
}

// update runs fn in a read-write transaction. Versions bumped by fn are rolled back
// if the transaction does not commit.
func update(db *badger.DB, docs []versioned, fn func(txn *badger.Txn) error) error {
	before := make([]int64, len(docs))
	for i, d := range docs {
		before[i] = d.GetVersion()
	}

	err := db.Update(fn)
	if err == nil {
		return nil
	}

	for i, d := range docs {
		d.SetVersion(before[i])
	}
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: concurrent write", apperrors.ErrVersionConflict)
	}
	return err
}

// scan decodes every value under prefix, calling each with a fresh decoder target
func scan(txn *badger.Txn, prefix []byte, each func(decode func(out interface{}) error) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		err := each(func(out interface{}) error {
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, out)
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}
