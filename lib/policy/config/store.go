package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/vox/lib/store"
	_ "github.com/TecharoHQ/vox/lib/store/all"
)

var (
	ErrNoStoreBackend      = errors.New("config.Store: no backend defined")
	ErrUnknownStoreBackend = errors.New("config.Store: unknown backend")
)

// Store selects the backend holding pending challenges and their tombstones.
//
// Only a shared backend such as valkey lets a challenge issued by one replica
// be answered on another. memory, bbolt and badger keep challenges local to
// the process or host.
type Store struct {
	// Backend is the registered name of a store: memory, bbolt, badger or valkey.
	Backend string `json:"backend"`

	// Parameters are passed to the backend factory untouched.
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (s *Store) Valid() error {
	if s.Backend == "" {
		return ErrNoStoreBackend
	}

	fac, ok := store.Get(s.Backend)
	if !ok {
		return fmt.Errorf("%w: %q, known backends: %v", ErrUnknownStoreBackend, s.Backend, store.Methods())
	}

	if err := fac.Valid(s.params()); err != nil {
		return fmt.Errorf("config.Store: %s parameters: %w", s.Backend, err)
	}

	return nil
}

// Build opens the configured challenge store. The store lives until ctx is
// canceled.
func (s *Store) Build(ctx context.Context) (store.Interface, error) {
	if err := s.Valid(); err != nil {
		return nil, err
	}

	st, err := store.Build(ctx, s.Backend, s.params())
	if err != nil {
		return nil, fmt.Errorf("config.Store: can't build %s store: %w", s.Backend, err)
	}

	return st, nil
}

// params treats missing parameters as an empty object so every factory can
// decode them.
func (s *Store) params() json.RawMessage {
	if len(s.Parameters) == 0 {
		return json.RawMessage(`{}`)
	}
	return s.Parameters
}
