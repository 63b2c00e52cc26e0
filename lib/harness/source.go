package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/TecharoHQ/vox/lib/dataset"
)

var ErrNoSamples = errors.New("harness: source has no samples")

// Sample is an answer produced for a prompt.
type Sample struct {
	ContentType string
	Data        []byte

	// Origin names where the sample came from, for reports.
	Origin string
}

// Source obtains an answer to a prompt. Implementations decide how: replaying
// a recording, driving a browser, synthesizing speech.
type Source interface {
	Obtain(ctx context.Context, p Prompt) (Sample, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, p Prompt) (Sample, error)

func (f SourceFunc) Obtain(ctx context.Context, p Prompt) (Sample, error) {
	return f(ctx, p)
}

// FileSource replays recordings round robin, ignoring the prompt. It models
// a replay attacker.
type FileSource struct {
	samples []Sample
	next    atomic.Uint64
}

// NewFileSource reads every path up front. The content type is guessed from
// the file extension.
func NewFileSource(paths ...string) (*FileSource, error) {
	if len(paths) == 0 {
		return nil, ErrNoSamples
	}

	result := &FileSource{}
	for _, path := range paths {
		ct, ok := dataset.ContentType(path)
		if !ok {
			return nil, fmt.Errorf("harness: don't know how to send %s", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("harness: can't read %s: %w", path, err)
		}

		result.samples = append(result.samples, Sample{ContentType: ct, Data: data, Origin: path})
	}

	return result, nil
}

func (f *FileSource) Obtain(ctx context.Context, _ Prompt) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	i := f.next.Add(1) - 1
	return f.samples[i%uint64(len(f.samples))], nil
}
