package storetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib/store"
)

// Common runs the conformance suite every store backend must pass, including
// the single-winner claim behaviour of Delete.
func Common(t *testing.T, f store.Factory, config json.RawMessage) {
	if err := f.Valid(config); err != nil {
		t.Fatal(err)
	}

	s, err := f.Build(t.Context(), config)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		doer func(t *testing.T, s store.Interface) error
		err  error
	}{
		{
			name: "basic get set delete",
			doer: func(t *testing.T, s store.Interface) error {
				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to exist in store but it does not: %v", t.Name(), err)
				} else if err != nil {
					t.Error(err)
				}

				if !bytes.Equal(val, []byte(t.Name())) {
					t.Logf("want: %q", t.Name())
					t.Logf("got:  %q", string(val))
					t.Error("wrong value returned")
				}

				if err := s.Delete(t.Context(), t.Name()); err != nil {
					return err
				}

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Error("wanted test to not exist in store but it exists anyways")
				}

				if err := s.Delete(t.Context(), t.Name()); err == nil {
					t.Errorf("key %q does not exist and Delete did not return non-nil", t.Name())
				}

				return nil
			},
		},
		{
			name: "concurrent delete has one winner",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte("pending"), 5*time.Minute); err != nil {
					return err
				}

				var (
					wins atomic.Int32
					wg   sync.WaitGroup
				)

				for range 16 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if err := s.Delete(t.Context(), t.Name()); err == nil {
							wins.Add(1)
						}
					}()
				}
				wg.Wait()

				if got := wins.Load(); got != 1 {
					t.Errorf("wanted exactly one successful delete, got %d", got)
				}

				return nil
			},
		},
		{
			name: "json take",
			doer: func(t *testing.T, s store.Interface) error {
				type record struct {
					Phrase string `json:"phrase"`
				}

				db := store.JSON[record]{Underlying: s, Prefix: "take:"}
				if err := db.Set(t.Context(), t.Name(), record{Phrase: "seven three nine"}, 5*time.Minute); err != nil {
					return err
				}

				got, err := db.Take(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if got.Phrase != "seven three nine" {
					t.Errorf("wrong phrase taken: %q", got.Phrase)
				}

				if _, err := db.Take(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("second take should fail with ErrNotFound, got %v", err)
				}

				return nil
			},
		},
		{
			name: "expires",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 150*time.Millisecond); err != nil {
					return err
				}

				//nosleep:bypass badger stores expiry with one second resolution
				time.Sleep(1100 * time.Millisecond)

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				return nil
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.doer(t, s); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}
