// Package dataset turns labeled recordings into a classifier training set.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/TecharoHQ/vox/lib/classifier"
	"sigs.k8s.io/yaml"
)

// ManifestName is looked for at the dataset root before falling back to the
// human/ and bot/ directory convention.
const ManifestName = "manifest.yaml"

var (
	ErrEmpty       = errors.New("dataset: no recordings found")
	ErrBadManifest = errors.New("dataset: manifest is invalid")
)

// Source is one labeled recording on disk.
type Source struct {
	Path  string           `json:"path"`
	Label classifier.Label `json:"-"`
}

type manifest struct {
	Examples []struct {
		Path  string `json:"path"`
		Label string `json:"label"`
	} `json:"examples"`
}

// ContentType guesses how to decode a recording from its extension.
func ContentType(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return "audio/wav", true
	case ".mp3":
		return "audio/mpeg", true
	case ".pcm", ".raw", ".l16":
		return "audio/L16; rate=16000", true
	}
	return "", false
}

// Scan lists the recordings under root, either from manifest.yaml or from
// the human/ and bot/ subdirectories.
func Scan(root string) ([]Source, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestName))
	switch {
	case err == nil:
		return fromManifest(root, data)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	var result []Source
	for _, label := range []classifier.Label{classifier.Human, classifier.Bot} {
		dir := filepath.Join(root, label.String())
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := ContentType(path); ok {
				result = append(result, Source{Path: path, Label: label})
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dataset: can't walk %s: %w", dir, err)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmpty, root)
	}

	slices.SortFunc(result, func(a, b Source) int { return strings.Compare(a.Path, b.Path) })
	return result, nil
}

func fromManifest(root string, data []byte) ([]Source, error) {
	var m manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadManifest, err)
	}

	var errs []error
	result := make([]Source, 0, len(m.Examples))
	for i, ex := range m.Examples {
		label, err := classifier.ParseLabel(ex.Label)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: entry %d: %w", ErrBadManifest, i, err))
			continue
		}

		if _, ok := ContentType(ex.Path); !ok {
			errs = append(errs, fmt.Errorf("%w: entry %d: unsupported file %s", ErrBadManifest, i, ex.Path))
			continue
		}

		path := ex.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		result = append(result, Source{Path: path, Label: label})
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmpty, filepath.Join(root, ManifestName))
	}

	return result, nil
}
