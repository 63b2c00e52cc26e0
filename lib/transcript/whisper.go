//go:build whisper

package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/TecharoHQ/vox/lib/audio"
	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Whisper recognizes speech with a local whisper.cpp model.
type Whisper struct {
	model whisper.Model
}

func NewWhisper(modelPath string) (*Whisper, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: whisper model not found at %s: %w", ErrRecognizer, modelPath, err)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: can't load whisper model: %w", ErrRecognizer, err)
	}

	slog.Info("whisper model loaded", "path", modelPath)
	return &Whisper{model: model}, nil
}

// Decode runs the model in the background since whisper.cpp can't be
// interrupted. A cancelled call returns early and the result is discarded.
func (w *Whisper) Decode(ctx context.Context, clip *audio.Clip) (string, error) {
	samples := make([]float32, len(clip.Samples))
	for i, s := range clip.Samples {
		samples[i] = float32(s)
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		wctx, err := w.model.NewContext()
		if err != nil {
			done <- result{err: fmt.Errorf("%w: can't create whisper context: %w", ErrRecognizer, err)}
			return
		}

		if err := wctx.Process(samples, nil, nil, nil); err != nil {
			done <- result{err: fmt.Errorf("%w: %w", ErrRecognizer, err)}
			return
		}

		var sb strings.Builder
		for {
			segment, err := wctx.NextSegment()
			if err != nil {
				break
			}
			sb.WriteString(segment.Text)
		}
		done <- result{text: strings.TrimSpace(sb.String())}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if r.text == "" {
			return "", ErrNoSpeech
		}
		return r.text, nil
	}
}

func (w *Whisper) Close() error {
	return w.model.Close()
}
