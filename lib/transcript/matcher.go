package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/vox/lib/audio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recognitionTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vox_recognition_time",
		Help:    "Time spent in the speech recognizer (milliseconds)",
		Buckets: prometheus.ExponentialBucketsRange(10, 60_000, 14),
	})

	transcriptScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vox_transcript_score",
		Help:    "Distribution of transcript similarity scores",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	recognizerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vox_recognizer_failures",
		Help: "Recognitions that failed in the backend and scored zero",
	})
)

// Result is the outcome of matching one answer.
type Result struct {
	Score      float64
	Transcript string
}

// Matcher scores an answer against the phrase it should contain.
type Matcher struct {
	rec     Recognizer
	timeout time.Duration
}

// NewMatcher bounds every recognition by timeout. Zero means no bound beyond
// the caller's context.
func NewMatcher(rec Recognizer, timeout time.Duration) *Matcher {
	return &Matcher{rec: rec, timeout: timeout}
}

// Match transcribes clip and compares it with expected. No speech and backend
// failures are a zero score. Exceeding the bound returns ErrTimeout and
// unusable audio returns an error wrapping audio.ErrDecode.
func (m *Matcher) Match(ctx context.Context, clip *audio.Clip, expected string) (Result, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	clip, err := audio.Resample(clip, SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", audio.ErrDecode, err)
	}

	start := time.Now()
	text, err := m.rec.Decode(ctx, clip)
	recognitionTime.Observe(float64(time.Since(start).Milliseconds()))

	switch {
	case errors.Is(err, ErrNoSpeech):
		transcriptScore.Observe(0)
		return Result{}, nil
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)):
		return Result{}, fmt.Errorf("%w: %w", ErrTimeout, context.DeadlineExceeded)
	case errors.Is(err, audio.ErrDecode):
		return Result{}, err
	case err != nil:
		recognizerFailures.Inc()
		transcriptScore.Observe(0)
		slog.Warn("recognizer failed, scoring zero", "err", fmt.Errorf("%w: %w", ErrRecognizer, err))
		return Result{}, nil
	}

	result := Result{
		Score:      Similarity(expected, text),
		Transcript: Normalize(text),
	}
	transcriptScore.Observe(result.Score)
	slog.Debug("matched transcript", "score", result.Score, "words", len(result.Transcript))

	return result, nil
}
