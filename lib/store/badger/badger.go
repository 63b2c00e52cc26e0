// Package badger is a store backend on top of BadgerDB. Expiry uses badger's
// native per-entry TTL, and claims rely on its optimistic transactions.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/vox/lib/store"
	badger "github.com/dgraph-io/badger/v4"
)

type Store struct {
	db *badger.DB
}

// Delete claims key inside a read-write transaction. If another caller
// deleted the key first, the commit fails with a conflict and the caller
// loses the claim.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}

		return txn.Delete([]byte(key))
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound), errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	default:
		return fmt.Errorf("can't delete from badger: %w", err)
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	if err != nil {
		return nil, fmt.Errorf("can't fetch from badger: %w", err)
	}

	return val, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value).WithTTL(expiry)
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("%w: %w", store.ErrCantEncode, err)
		}

		return nil
	})
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) gcThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing to do.
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				slog.Error("error during badger value log gc", "err", err)
			}
		}
	}
}

// slogLogger routes badger's internal logging through slog, dropping
// info and debug chatter.
type slogLogger struct {
	lg *slog.Logger
}

func (l slogLogger) Errorf(f string, v ...any)   { l.lg.Error(fmt.Sprintf(f, v...)) }
func (l slogLogger) Warningf(f string, v ...any) { l.lg.Warn(fmt.Sprintf(f, v...)) }
func (slogLogger) Infof(string, ...any)          {}
func (slogLogger) Debugf(string, ...any)         {}

// NewLogger returns a badger.Logger that writes to lg.
func NewLogger(lg *slog.Logger) badger.Logger {
	return slogLogger{lg: lg}
}
