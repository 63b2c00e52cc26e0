// Package challengetest has helpers for tests that need issued challenges.
package challengetest

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib/challenge"
	"github.com/TecharoHQ/vox/lib/store/memory"
)

// FixedKind is the registered name of the Fixed phrase source.
const FixedKind = "fixed"

var registerOnce sync.Once

// Fixed always returns the same phrase, or opts.Pool[0] when set.
type Fixed struct{}

func (Fixed) Valid(challenge.Options) error { return nil }

func (Fixed) Phrase(_ io.Reader, opts challenge.Options) (string, error) {
	if len(opts.Pool) != 0 {
		return opts.Pool[0], nil
	}
	return "seven three five", nil
}

// Clock is a settable clock for driving expiry in tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewGenerator returns a Generator backed by an in-memory store that follows
// clock. The phrase is always phrase.
func NewGenerator(t *testing.T, clock *Clock, phrase string) *challenge.Generator {
	t.Helper()

	registerOnce.Do(func() { challenge.Register(FixedKind, Fixed{}) })

	st := memory.NewWithClock(t.Context(), clock.Now)
	gen, err := challenge.NewGenerator(st, challenge.Config{
		Kind:    FixedKind,
		TTL:     30 * time.Second,
		Options: challenge.Options{Pool: []string{phrase}},
	})
	if err != nil {
		t.Fatalf("can't make generator: %v", err)
	}
	gen.Now = clock.Now

	return gen
}
