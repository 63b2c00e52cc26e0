// Package transcript checks that an answer says the expected phrase.
package transcript

import (
	"context"
	"errors"

	"github.com/TecharoHQ/vox/lib/audio"
)

// SampleRate is the rate every Recognizer receives audio at.
const SampleRate = 16000

var (
	// ErrNoSpeech means the recognizer heard nothing intelligible. It scores
	// zero and is not a failure.
	ErrNoSpeech = errors.New("transcript: no speech detected")

	// ErrTimeout means recognition didn't finish inside its bound.
	ErrTimeout = errors.New("transcript: recognition timed out")

	// ErrRecognizer wraps failures of the recognition backend itself.
	ErrRecognizer = errors.New("transcript: recognizer failed")
)

// Recognizer turns speech into text.
type Recognizer interface {
	// Decode transcribes a mono clip at SampleRate. Implementations should
	// return ErrNoSpeech rather than an empty string when nothing was said,
	// and wrap audio.ErrDecode when the payload itself is unusable.
	Decode(ctx context.Context, clip *audio.Clip) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, clip *audio.Clip) (string, error)

func (f RecognizerFunc) Decode(ctx context.Context, clip *audio.Clip) (string, error) {
	return f(ctx, clip)
}
