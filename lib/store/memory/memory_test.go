package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib/store"
	"github.com/TecharoHQ/vox/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	storetest.Common(t, factory{}, nil)
}

func TestClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewWithClock(t.Context(), func() time.Time { return now })

	if err := s.Set(t.Context(), "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatal(err)
	}

	now = now.Add(29 * time.Second)
	if _, err := s.Get(t.Context(), "k"); err != nil {
		t.Errorf("wanted key to be live at 29s, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := s.Get(t.Context(), "k"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("wanted ErrNotFound at 31s, got %v", err)
	}
}
