package bbolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/vox/lib/store"
	"go.etcd.io/bbolt"
)

// Sentinel error values used for testing and in admin-visible error messages.
var (
	ErrBucketDoesNotExist = errors.New("bbolt: bucket does not exist")
	ErrNotExists          = errors.New("bbolt: value does not exist in store")
)

var (
	keyData   = []byte("data")
	keyExpiry = []byte("expiry")
)

// Store implements store.Interface backed by bbolt[1].
//
// Every value gets its own top-level bucket holding two keys:
//
// 1. data - The raw data, usually a JSON challenge record
// 2. expiry - The expiry time formatted as a time.RFC3339Nano timestamp string
//
// Keeping the expiry next to the data lets the cleanup pass scan expiry
// times without decoding records.
//
// bbolt takes an exclusive file lock, so it is not suitable when several Vox
// instances must share pending challenges. Use valkey for that.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb *bbolt.DB
	now func() time.Time
}

func readExpiry(key []byte, bkt *bbolt.Bucket) (time.Time, error) {
	expiryStr := bkt.Get(keyExpiry)
	if expiryStr == nil {
		return time.Time{}, fmt.Errorf("[unexpected] %w: %q (expiry is nil)", store.ErrNotFound, string(key))
	}

	expiry, err := time.Parse(time.RFC3339Nano, string(expiryStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("[unexpected] %w: %w", store.ErrCantDecode, err)
	}

	return expiry, nil
}

// Delete a live key from the datastore. The existence check and removal run
// in one write transaction, so only one concurrent caller can succeed.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(key))
		if bkt == nil {
			return fmt.Errorf("%w: %w: %q", store.ErrNotFound, ErrNotExists, key)
		}

		expiry, err := readExpiry([]byte(key), bkt)
		if err != nil {
			return err
		}

		if err := tx.DeleteBucket([]byte(key)); err != nil {
			return err
		}

		if s.now().After(expiry) {
			return fmt.Errorf("%w: %q (expired)", store.ErrNotFound, key)
		}

		return nil
	})
}

// Get a value from the datastore. Expired values are reported as missing and
// removed in the background.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		itemBucket := tx.Bucket([]byte(key))
		if itemBucket == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		expiry, err := readExpiry([]byte(key), itemBucket)
		if err != nil {
			return err
		}

		if s.now().After(expiry) {
			go s.Delete(context.Background(), key)
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		dataStr := itemBucket.Get(keyData)
		if dataStr == nil {
			return fmt.Errorf("[unexpected] %w: %q (data is nil)", store.ErrNotFound, key)
		}

		result = make([]byte, len(dataStr))
		copy(result, dataStr)

		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Set a value into the store with a given expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	expires := s.now().Add(expiry)

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		valueBkt, err := tx.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return fmt.Errorf("%w: %w: %q (create bucket)", store.ErrCantEncode, err, key)
		}

		if err := valueBkt.Put(keyExpiry, []byte(expires.Format(time.RFC3339Nano))); err != nil {
			return fmt.Errorf("%w: %q (expiry)", store.ErrCantEncode, key)
		}

		if err := valueBkt.Put(keyData, value); err != nil {
			return fmt.Errorf("%w: %q (data)", store.ErrCantEncode, key)
		}

		return nil
	})
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.bdb.Close()
}

func (s *Store) cleanup(ctx context.Context) error {
	now := s.now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		var expired [][]byte

		if err := tx.ForEach(func(key []byte, valueBkt *bbolt.Bucket) error {
			expiry, err := readExpiry(key, valueBkt)
			if err != nil {
				slog.Warn("while running cleanup, expiry is unreadable", "key", string(key), "err", err)
				return nil
			}

			if now.After(expiry) {
				expired = append(expired, append([]byte(nil), key...))
			}

			return nil
		}); err != nil {
			return err
		}

		for _, key := range expired {
			if err := tx.DeleteBucket(key); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("error during bbolt cleanup", "err", err)
			}
		}
	}
}
