package store_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib/challenge"
	"github.com/TecharoHQ/vox/lib/store"
	"github.com/TecharoHQ/vox/lib/store/memory"
)

func pending(id string) challenge.Challenge {
	now := time.Now().UTC().Truncate(time.Second)
	return challenge.Challenge{
		ID:        id,
		Kind:      "digits",
		Phrase:    "four one nine seven",
		IssuedAt:  now,
		ExpiresAt: now.Add(2 * time.Minute),
		Metadata:  map[string]string{"X-Real-Ip": "198.51.100.7"},
	}
}

func TestJSONChallengeRecords(t *testing.T) {
	st := memory.New(t.Context())
	records := store.JSON[challenge.Challenge]{Underlying: st, Prefix: "challenge:"}
	tombstones := store.JSON[challenge.Challenge]{Underlying: st, Prefix: "consumed:"}

	want := pending("c1")
	if err := records.Set(t.Context(), want.ID, want, time.Minute); err != nil {
		t.Fatal(err)
	}

	got, err := records.Get(t.Context(), want.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phrase != want.Phrase || got.Kind != want.Kind || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("stored challenge changed: wanted %+v, got %+v", want, got)
	}
	if got.Metadata["X-Real-Ip"] != "198.51.100.7" {
		t.Errorf("metadata lost: %v", got.Metadata)
	}

	if _, err := tombstones.Get(t.Context(), want.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("prefixes must not share keys, got: %v", err)
	}

	if err := st.Set(t.Context(), "challenge:garbled", []byte("{\"expiresAt\": 12"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := records.Get(t.Context(), "garbled"); !errors.Is(err, store.ErrCantDecode) {
		t.Errorf("wanted ErrCantDecode for a garbled record, got: %v", err)
	}
}

func TestJSONTakeClaimsOnce(t *testing.T) {
	records := store.JSON[challenge.Challenge]{Underlying: memory.New(t.Context()), Prefix: "challenge:"}

	c := pending("c2")
	if err := records.Set(t.Context(), c.ID, c, time.Minute); err != nil {
		t.Fatal(err)
	}

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := records.Take(t.Context(), c.ID)
			switch {
			case err == nil:
				winners.Add(1)
				if got.Phrase != c.Phrase {
					t.Errorf("claimed the wrong challenge: %+v", got)
				}
			case !errors.Is(err, store.ErrNotFound):
				t.Errorf("losing claim should see ErrNotFound, got: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("wanted exactly one claim of %s, got %d", c.ID, n)
	}

	if _, err := records.Get(t.Context(), c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("a claimed challenge must be gone, got: %v", err)
	}
}
