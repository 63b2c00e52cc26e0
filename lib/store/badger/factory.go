package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/TecharoHQ/vox/lib/store"
	badger "github.com/dgraph-io/badger/v4"
)

var (
	ErrMissingPath = errors.New("badger: path is missing from config")
)

func init() {
	store.Register("badger", Factory{})
}

// Factory builds BadgerDB backed stores.
type Factory struct{}

// Config is the badger storage backend configuration.
type Config struct {
	// Path is the directory holding the database files.
	Path string `json:"path,omitempty"`

	// InMemory keeps everything in RAM. Path is ignored when set.
	InMemory bool `json:"in_memory,omitempty"`
}

func (c Config) Valid() error {
	if !c.InMemory && c.Path == "" {
		return ErrMissingPath
	}

	return nil
}

func parse(data json.RawMessage) (Config, error) {
	var config Config
	if len(data) != 0 {
		if err := json.Unmarshal([]byte(data), &config); err != nil {
			return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
		}
	}

	if err := config.Valid(); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return config, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parse(data)
	return err
}

func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	return Open(ctx, config)
}

// Open opens a badger store directly. The database is closed when ctx is
// cancelled.
func Open(ctx context.Context, config Config) (*Store, error) {
	opts := badger.DefaultOptions(config.Path).
		WithInMemory(config.InMemory).
		WithLogger(NewLogger(slog.With("store", "badger")))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open badger database %s: %w", config.Path, err)
	}

	result := &Store{db: db}

	go func() {
		result.gcThread(ctx)
		result.Close()
	}()

	return result, nil
}
