//go:build !whisper

package transcript

import (
	"context"
	"fmt"

	"github.com/TecharoHQ/vox/lib/audio"
)

// Whisper is unavailable in builds without the whisper tag.
type Whisper struct{}

func NewWhisper(modelPath string) (*Whisper, error) {
	return nil, fmt.Errorf("%w: vox was built without whisper support, rebuild with -tags whisper", ErrRecognizer)
}

func (*Whisper) Decode(context.Context, *audio.Clip) (string, error) {
	return "", fmt.Errorf("%w: whisper support not built in", ErrRecognizer)
}

func (*Whisper) Close() error { return nil }
