package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/TecharoHQ/vox"
	"github.com/TecharoHQ/vox/lib/store"
)

const (
	recordPrefix    = "challenge:"
	tombstonePrefix = "consumed:"

	// DefaultRetention is how long expired and consumed challenges are
	// remembered so late submissions get a precise rejection.
	DefaultRetention = 5 * time.Minute
)

// Config describes how a Generator issues challenges.
type Config struct {
	Kind          string
	TTL           time.Duration
	Retention     time.Duration
	IDEntropyBits int
	Options       Options
}

func (c *Config) defaults() {
	if c.TTL == 0 {
		c.TTL = vox.DefaultChallengeTTL
	}

	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}

	if c.IDEntropyBits == 0 {
		c.IDEntropyBits = DefaultIDEntropyBits
	}
}

func (c Config) Valid() error {
	var errs []error

	impl, ok := Get(c.Kind)
	if !ok {
		errs = append(errs, fmt.Errorf("%w: %q, known: %v", ErrUnknownKind, c.Kind, Methods()))
	} else if err := impl.Valid(c.Options); err != nil {
		errs = append(errs, err)
	}

	if c.TTL < 0 {
		errs = append(errs, fmt.Errorf("%w: ttl must be positive, got %s", ErrBadConfig, c.TTL))
	}

	if c.Retention < 0 {
		errs = append(errs, fmt.Errorf("%w: retention must be positive, got %s", ErrBadConfig, c.Retention))
	}

	if c.IDEntropyBits != 0 && c.IDEntropyBits < MinIDEntropyBits {
		errs = append(errs, fmt.Errorf("%w: id entropy must be at least %d bits, got %d", ErrBadConfig, MinIDEntropyBits, c.IDEntropyBits))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Generator issues challenges and owns their single-use lifecycle.
type Generator struct {
	records    *store.JSON[Challenge]
	tombstones *store.JSON[Challenge]
	impl       Impl
	cfg        Config

	// Now and Rand may be replaced by tests.
	Now  func() time.Time
	Rand io.Reader
}

// NewGenerator validates cfg and binds it to a store.
func NewGenerator(st store.Interface, cfg Config) (*Generator, error) {
	cfg.defaults()
	if err := cfg.Valid(); err != nil {
		return nil, err
	}

	impl, _ := Get(cfg.Kind)

	return &Generator{
		records:    &store.JSON[Challenge]{Underlying: st, Prefix: recordPrefix},
		tombstones: &store.JSON[Challenge]{Underlying: st, Prefix: tombstonePrefix},
		impl:       impl,
		cfg:        cfg,
		Now:        time.Now,
		Rand:       rand.Reader,
	}, nil
}

// TTL is the answer window of issued challenges.
func (g *Generator) TTL() time.Duration { return g.cfg.TTL }

// Issue draws a fresh phrase and persists the pending challenge.
func (g *Generator) Issue(ctx context.Context, metadata map[string]string) (*Challenge, error) {
	phrase, err := g.impl.Phrase(g.Rand, g.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("challenge: can't draw phrase from %s: %w", g.cfg.Kind, err)
	}

	id, err := NewID(g.Rand, g.cfg.IDEntropyBits)
	if err != nil {
		return nil, err
	}

	now := g.Now().UTC()
	chall := &Challenge{
		ID:        id,
		Kind:      g.cfg.Kind,
		Phrase:    phrase,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.cfg.TTL),
		Metadata:  metadata,
	}

	if err := g.records.Set(ctx, id, *chall, g.cfg.TTL+g.cfg.Retention); err != nil {
		return nil, fmt.Errorf("challenge: can't persist challenge: %w", err)
	}

	issued.WithLabelValues(g.cfg.Kind).Inc()
	slog.Debug("issued challenge", "challenge", chall)

	return chall, nil
}

// Lookup returns a pending challenge without claiming it. It fails with
// ErrNotFound, ErrExpired or ErrConsumed when the challenge can't be answered.
func (g *Generator) Lookup(ctx context.Context, id string) (*Challenge, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	chall, err := g.records.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return g.tombstone(ctx, id)
	case err != nil:
		return nil, fmt.Errorf("challenge: can't read challenge: %w", err)
	}

	if chall.Expired(g.Now()) {
		return &chall, ErrExpired
	}

	return &chall, nil
}

// Consume claims a challenge for verification. Of any number of concurrent
// calls for the same id at most one returns a nil error. A claimed challenge
// stays claimed even when the caller later fails.
func (g *Generator) Consume(ctx context.Context, id string) (*Challenge, error) {
	if !ValidID(id) {
		claims.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	chall, err := g.records.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c, err := g.tombstone(ctx, id)
		claims.WithLabelValues(claimResult(err)).Inc()
		return c, err
	case err != nil:
		return nil, fmt.Errorf("challenge: can't read challenge: %w", err)
	}

	chall.Consumed = true

	// The tombstone goes in before the claim so losers of the race below
	// already see the challenge as consumed.
	if err := g.tombstones.Set(ctx, id, chall, g.cfg.Retention); err != nil {
		return nil, fmt.Errorf("challenge: can't record consumption: %w", err)
	}

	if err := g.records.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			claims.WithLabelValues("consumed").Inc()
			return &chall, ErrConsumed
		}
		return nil, fmt.Errorf("challenge: can't claim challenge: %w", err)
	}

	if chall.Expired(g.Now()) {
		claims.WithLabelValues("expired").Inc()
		return &chall, ErrExpired
	}

	claims.WithLabelValues("ok").Inc()
	TimeTaken.WithLabelValues(chall.Kind).Observe(float64(g.Now().Sub(chall.IssuedAt).Milliseconds()))

	return &chall, nil
}

func (g *Generator) tombstone(ctx context.Context, id string) (*Challenge, error) {
	chall, err := g.tombstones.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("challenge: can't read tombstone: %w", err)
	}

	return &chall, ErrConsumed
}

func claimResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConsumed):
		return "consumed"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "not_found"
	}
}
