package harness

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib"
	"github.com/TecharoHQ/vox/lib/audio"
	"github.com/TecharoHQ/vox/lib/features"
	"github.com/TecharoHQ/vox/lib/transcript"
)

type fixedScorer float64

func (f fixedScorer) Score(context.Context, features.Vector) (float64, string, error) {
	return float64(f), "test", nil
}

func tone(t *testing.T) []byte {
	t.Helper()

	const rate = 16000
	rng := rand.New(rand.NewPCG(3, 4))
	samples := make([]float64, rate*2)
	for i := range samples {
		tt := float64(i) / rate
		samples[i] = 0.3*math.Sin(2*math.Pi*200*tt) + 0.02*rng.NormFloat64()
	}

	data, err := audio.EncodeWAV(&audio.Clip{Samples: samples, SampleRate: rate})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// parrot hears whatever the last prompt asked for.
type parrot struct {
	lock   sync.Mutex
	phrase string
	wrong  bool
}

func (p *parrot) source(data []byte) Source {
	return SourceFunc(func(_ context.Context, pr Prompt) (Sample, error) {
		p.lock.Lock()
		defer p.lock.Unlock()
		p.phrase = pr.Phrase
		return Sample{ContentType: "audio/wav", Data: data, Origin: "parrot"}, nil
	})
}

func (p *parrot) recognizer() transcript.Recognizer {
	return transcript.RecognizerFunc(func(context.Context, *audio.Clip) (string, error) {
		p.lock.Lock()
		defer p.lock.Unlock()
		if p.wrong {
			return "nothing like it", nil
		}
		return p.phrase, nil
	})
}

func spawn(t *testing.T, rec transcript.Recognizer, score float64) *Client {
	t.Helper()

	srv, err := lib.New(t.Context(), lib.Options{
		Recognizer: rec,
		Scorer:     fixedScorer(score),
	})
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return NewClient(ts.URL)
}

func TestProbe(t *testing.T) {
	data := tone(t)

	for _, tt := range []struct {
		name         string
		wrong        bool
		score        float64
		wantAccepted int
		wantReason   string
	}{
		{
			name:         "human-like answers get through",
			score:        0.9,
			wantAccepted: 3,
		},
		{
			name:       "wrong words are blocked",
			wrong:      true,
			score:      0.9,
			wantReason: "TranscriptMismatch",
		},
		{
			name:       "bot-like voices are blocked",
			score:      0.1,
			wantReason: "BotDetected",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			p := &parrot{wrong: tt.wrong}
			probe := &Probe{
				Client:   spawn(t, p.recognizer(), tt.score),
				Source:   p.source(data),
				Attempts: 3,
			}

			report, err := probe.Run(t.Context())
			if err != nil {
				t.Fatal(err)
			}

			if report.Attempts != 3 || report.Errors != 0 {
				t.Fatalf("wanted 3 clean attempts, got %+v", report)
			}

			if report.Accepted != tt.wantAccepted {
				t.Errorf("wanted %d accepted, got %d", tt.wantAccepted, report.Accepted)
			}

			if tt.wantReason != "" {
				if report.Reasons[tt.wantReason] != 3 {
					t.Errorf("wanted reason %s on every attempt, got %v", tt.wantReason, report.Reasons)
				}
				if report.BlockRate() != 1 {
					t.Errorf("wanted block rate 1, got %f", report.BlockRate())
				}
			}
		})
	}
}

func TestProbeCountsSourceErrors(t *testing.T) {
	p := &parrot{}
	probe := &Probe{
		Client: spawn(t, p.recognizer(), 0.9),
		Source: SourceFunc(func(context.Context, Prompt) (Sample, error) {
			return Sample{}, errors.New("microphone unplugged")
		}),
		Attempts: 2,
	}

	report, err := probe.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	if report.Errors != 2 || report.BlockRate() != 0 {
		t.Errorf("wanted 2 errors and nothing answered, got %+v", report)
	}
}

func TestProbeStopsOnCancel(t *testing.T) {
	p := &parrot{}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	probe := &Probe{
		Client:   spawn(t, p.recognizer(), 0.9),
		Source:   p.source(tone(t)),
		Attempts: 5,
		Interval: time.Hour,
	}

	if _, err := probe.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("wanted context.Canceled, got %v", err)
	}
}

func TestClientRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).Verify(t.Context(), "id", Sample{ContentType: "audio/wav"})

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("wanted RateLimitError, got %v", err)
	}

	if rle.RetryAfter != 2*time.Second {
		t.Errorf("wanted 2s back off, got %s", rle.RetryAfter)
	}

	if !errors.Is(err, ErrRateLimited) {
		t.Error("RateLimitError should unwrap to ErrRateLimited")
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.mp3")

	for _, path := range []string{a, b} {
		if err := os.WriteFile(path, []byte(path), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	src, err := NewFileSource(a, b)
	if err != nil {
		t.Fatal(err)
	}

	for i, want := range []struct{ origin, ct string }{
		{a, "audio/wav"},
		{b, "audio/mpeg"},
		{a, "audio/wav"},
	} {
		s, err := src.Obtain(t.Context(), Prompt{})
		if err != nil {
			t.Fatal(err)
		}

		if s.Origin != want.origin || s.ContentType != want.ct {
			t.Errorf("%d: wanted %s (%s), got %s (%s)", i, want.origin, want.ct, s.Origin, s.ContentType)
		}
	}

	if _, err := NewFileSource(); !errors.Is(err, ErrNoSamples) {
		t.Errorf("wanted ErrNoSamples, got %v", err)
	}

	if _, err := NewFileSource(filepath.Join(dir, "notes.txt")); err == nil {
		t.Error("wanted an error for an unknown extension")
	}
}

func TestPlaywrightSource(t *testing.T) {
	page := os.Getenv("VOX_PLAYWRIGHT_PAGE")
	if page == "" {
		t.Skip("set VOX_PLAYWRIGHT_PAGE to a synthesis page to run this test")
	}

	src, err := NewPlaywrightSource(PlaywrightConfig{PageURL: page, Headless: true})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	s, err := src.Obtain(t.Context(), Prompt{Phrase: "seven three nine"})
	if err != nil {
		t.Fatal(err)
	}

	if len(s.Data) == 0 {
		t.Error("wanted audio from the page")
	}
}
