package bbolt

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib/store"
	"github.com/TecharoHQ/vox/lib/store/storetest"
	"go.etcd.io/bbolt"
)

func TestImpl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	t.Log(path)
	data, err := json.Marshal(Config{
		Path: path,
	})
	if err != nil {
		t.Fatal(err)
	}

	storetest.Common(t, Factory{}, json.RawMessage(data))
}

func TestDeleteExpiredIsNotAClaim(t *testing.T) {
	bdb, err := bbolt.Open(filepath.Join(t.TempDir(), "db"), 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bdb.Close() })

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Store{bdb: bdb, now: func() time.Time { return now }}

	if err := s.Set(t.Context(), "challenge", []byte("{}"), 30*time.Second); err != nil {
		t.Fatal(err)
	}

	now = now.Add(31 * time.Second)

	if err := s.Delete(t.Context(), "challenge"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("wanted ErrNotFound deleting an expired key, got %v", err)
	}

	if err := s.Set(t.Context(), "stale", []byte("{}"), -time.Second); err != nil {
		t.Fatal(err)
	}

	if err := s.cleanup(t.Context()); err != nil {
		t.Fatal(err)
	}

	if err := bdb.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte("stale")) != nil {
			t.Error("cleanup left an expired bucket behind")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}
