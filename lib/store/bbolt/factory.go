package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TecharoHQ/vox/lib/store"
	"go.etcd.io/bbolt"
)

var (
	ErrMissingPath     = errors.New("bbolt: path is missing from config")
	ErrCantWriteToPath = errors.New("bbolt: can't write to path")
)

func init() {
	store.Register("bbolt", Factory{})
}

// Factory builds new instances of the bbolt storage backend according to
// configuration passed via a json.RawMessage.
type Factory struct{}

func parse(data json.RawMessage) (Config, error) {
	var config Config
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return config, nil
}

// Build parses and validates the bbolt storage backend Config and creates
// a new instance of it.
func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	bdb, err := bbolt.Open(config.Path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt database %s: %w", config.Path, err)
	}

	result := &Store{
		bdb: bdb,
		now: time.Now,
	}

	go func() {
		result.cleanupThread(ctx)
		result.Close()
	}()

	return result, nil
}

// Valid parses and validates the bbolt store Config or returns
// an error.
func (Factory) Valid(data json.RawMessage) error {
	_, err := parse(data)
	return err
}

// Config is the bbolt storage backend configuration.
type Config struct {
	// Path is the filesystem path of the database. The folder must be writable to Vox.
	Path string `json:"path"`
}

// Valid validates the configuration including checking if its containing folder is writable.
func (c Config) Valid() error {
	var errs []error

	if c.Path == "" {
		errs = append(errs, ErrMissingPath)
	} else {
		dir := filepath.Dir(c.Path)
		testFile := filepath.Join(dir, ".vox-write-test")
		if err := os.WriteFile(testFile, []byte(""), 0600); err != nil {
			errs = append(errs, ErrCantWriteToPath)
		}
		os.Remove(testFile)
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}
