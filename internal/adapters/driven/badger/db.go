// Package badger stores templates, signed documents, sessions and hand-offs
// in an embedded Badger database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// maxConflictRetries bounds retries of a transaction that lost a write conflict
const maxConflictRetries = 3

// DB wraps a badger database
type DB struct {
	*badgerdb.DB
}

// Open opens the database in dir. An empty dir runs in memory.
func Open(dir string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badgerdb.DefaultOptions(dir).WithLogger(&slogAdapter{logger: logger.With("component", "badger")})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &DB{DB: db}, nil
}

// Ping reports whether the database is open
func (db *DB) Ping(ctx context.Context) error {
	if db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return ctx.Err()
}

// update runs fn in a read-write transaction, retrying on write conflicts
func (db *DB) update(fn func(txn *badgerdb.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(txn *badgerdb.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func exists(txn *badgerdb.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// slogAdapter satisfies badger.Logger
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
