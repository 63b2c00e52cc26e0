package bbolt

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib/store"
)

func TestFactoryValid(t *testing.T) {
	dir := t.TempDir()

	for _, tt := range []struct {
		name   string
		params string
		err    error
	}{
		{
			name:   "pending challenges on disk",
			params: `{"path": "` + filepath.Join(dir, "challenges.db") + `"}`,
		},
		{
			name:   "no path",
			params: `{}`,
			err:    ErrMissingPath,
		},
		{
			name:   "directory does not exist",
			params: `{"path": "` + filepath.Join(dir, "missing", "challenges.db") + `"}`,
			err:    ErrCantWriteToPath,
		},
		{
			name:   "not an object",
			params: `"/var/lib/vox/challenges.db"`,
			err:    store.ErrBadConfig,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := (Factory{}).Valid(json.RawMessage(tt.params)); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("invalid error returned")
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, ".vox-write-test")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("writability check left its file behind: %v", err)
	}
}

func TestFactoryBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenges.db")

	st, err := store.Build(t.Context(), "bbolt", json.RawMessage(`{"path": "`+path+`"}`))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.(*Store).Close() })

	if err := st.Set(t.Context(), "challenge:abc", []byte(`{"kind":"digits"}`), time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created at %s: %v", path, err)
	}

	if err := st.Delete(t.Context(), "challenge:abc"); err != nil {
		t.Fatalf("first claim should win: %v", err)
	}
	if err := st.Delete(t.Context(), "challenge:abc"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second claim should see ErrNotFound, got: %v", err)
	}
}
