package config_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib/policy/config"
	"github.com/TecharoHQ/vox/lib/store/badger"
	"github.com/TecharoHQ/vox/lib/store/bbolt"
	"github.com/TecharoHQ/vox/lib/store/valkey"
)

func TestStoreValid(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input config.Store
		err   error
	}{
		{
			name:  "no backend",
			input: config.Store{},
			err:   config.ErrNoStoreBackend,
		},
		{
			name: "in-memory backend",
			input: config.Store{
				Backend: "memory",
			},
		},
		{
			name: "bbolt backend",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": "/tmp/foo", "bucket": "bar"}`),
			},
		},
		{
			name: "badger backend in memory",
			input: config.Store{
				Backend:    "badger",
				Parameters: json.RawMessage(`{"in_memory": true}`),
			},
		},
		{
			name: "badger backend no path",
			input: config.Store{
				Backend:    "badger",
				Parameters: json.RawMessage(`{}`),
			},
			err: badger.ErrMissingPath,
		},
		{
			name: "valkey backend",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{"url": "redis://valkey:6379/0"}`),
			},
		},
		{
			name: "valkey backend no URL",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{}`),
			},
			err: valkey.ErrNoURL,
		},
		{
			name: "valkey backend bad URL",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{"url": "http://vox.example.com"}`),
			},
			err: valkey.ErrBadURL,
		},
		{
			name: "bbolt backend no path",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": "", "bucket": "bar"}`),
			},
			err: bbolt.ErrMissingPath,
		},
		{
			name: "unknown backend",
			input: config.Store{
				Backend: "taco salad",
			},
			err: config.ErrUnknownStoreBackend,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.Valid(); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("invalid error returned")
			}
		})
	}
}

func TestStoreBuild(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input config.Store
	}{
		{
			name:  "memory without parameters",
			input: config.Store{Backend: "memory"},
		},
		{
			name: "bbolt on disk",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": "` + filepath.Join(t.TempDir(), "vox.db") + `"}`),
			},
		},
		{
			name: "badger in memory",
			input: config.Store{
				Backend:    "badger",
				Parameters: json.RawMessage(`{"in_memory": true}`),
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			st, err := tt.input.Build(t.Context())
			if err != nil {
				t.Fatal(err)
			}

			if err := st.Set(t.Context(), "challenge:abc", []byte(`{}`), time.Minute); err != nil {
				t.Fatal(err)
			}
			if _, err := st.Get(t.Context(), "challenge:abc"); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestStoreBuildRefusesBadConfig(t *testing.T) {
	s := config.Store{Backend: "bbolt"}
	if _, err := s.Build(t.Context()); !errors.Is(err, bbolt.ErrMissingPath) {
		t.Errorf("wanted ErrMissingPath, got: %v", err)
	}

	s = config.Store{Backend: "sqlite"}
	_, err := s.Build(t.Context())
	if !errors.Is(err, config.ErrUnknownStoreBackend) {
		t.Fatalf("wanted ErrUnknownStoreBackend, got: %v", err)
	}
	if !strings.Contains(err.Error(), "valkey") {
		t.Errorf("error should list the known backends: %v", err)
	}
}
