package artifactstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/TecharoHQ/vox/lib/classifier"
)

const (
	modelsDir  = "models"
	latestPath = modelsDir + "/LATEST"
)

// Registry is the versioned view of a FileStore.
type Registry struct {
	fs FileStore
}

func New(fs FileStore) *Registry {
	return &Registry{fs: fs}
}

func artifactPath(version string) string {
	return modelsDir + "/" + version + ".msgpack"
}

// Publish stores art and makes it the latest artifact.
func (r *Registry) Publish(ctx context.Context, art *classifier.Artifact) (string, error) {
	data, version, err := classifier.Encode(art)
	if err != nil {
		return "", err
	}

	if err := r.fs.Write(ctx, artifactPath(version), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("artifactstore: can't write artifact %s: %w", version, err)
	}

	if err := r.fs.Write(ctx, latestPath, strings.NewReader(version+"\n")); err != nil {
		return "", fmt.Errorf("artifactstore: can't update latest pointer: %w", err)
	}

	slog.Info("published artifact", "version", version, "bytes", len(data))
	return version, nil
}

// Latest returns the version LATEST points at.
func (r *Registry) Latest(ctx context.Context) (string, error) {
	data, err := r.fs.Read(ctx, latestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoLatest
		}
		return "", fmt.Errorf("artifactstore: can't read latest pointer: %w", err)
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", ErrNoLatest
	}

	return version, nil
}

// Load reads one artifact and checks it against its content version.
func (r *Registry) Load(ctx context.Context, version string) (*classifier.Artifact, error) {
	data, err := r.fs.Read(ctx, artifactPath(version))
	if err != nil {
		return nil, fmt.Errorf("artifactstore: can't read artifact %s: %w", version, err)
	}

	return classifier.DecodeVerified(version, data)
}

// LoadLatest loads whatever LATEST points at.
func (r *Registry) LoadLatest(ctx context.Context) (*classifier.Artifact, error) {
	version, err := r.Latest(ctx)
	if err != nil {
		return nil, err
	}

	return r.Load(ctx, version)
}
