package badger

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/TecharoHQ/vox/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	for _, cfg := range []Config{
		{InMemory: true},
		{Path: filepath.Join(t.TempDir(), "badger")},
	} {
		data, err := json.Marshal(cfg)
		if err != nil {
			t.Fatal(err)
		}

		t.Run(string(data), func(t *testing.T) {
			storetest.Common(t, Factory{}, json.RawMessage(data))
		})
	}
}

func TestFactoryValid(t *testing.T) {
	if err := (Factory{}).Valid(json.RawMessage(`{}`)); !errors.Is(err, ErrMissingPath) {
		t.Errorf("wanted ErrMissingPath, got %v", err)
	}

	if err := (Factory{}).Valid(json.RawMessage(`}`)); err == nil {
		t.Error("wanted parsing failure but got a successful result")
	}
}
