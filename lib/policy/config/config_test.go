package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/TecharoHQ/vox"
	"github.com/TecharoHQ/vox/lib/policy/config"
)

func TestDefault(t *testing.T) {
	c := config.Default()

	if c.Thresholds.Transcript != vox.DefaultTranscriptThreshold {
		t.Errorf("wanted transcript threshold %v, got %v", vox.DefaultTranscriptThreshold, c.Thresholds.Transcript)
	}

	if c.Thresholds.Human != vox.DefaultHumanThreshold {
		t.Errorf("wanted human threshold %v, got %v", vox.DefaultHumanThreshold, c.Thresholds.Human)
	}

	if !c.ExposeScores {
		t.Error("scores should be exposed by default")
	}

	if c.Store.Backend != "memory" {
		t.Errorf("wanted memory store by default, got %q", c.Store.Backend)
	}

	if c.Expression != nil {
		t.Error("no expression should be set by default")
	}
}

func TestLoadGood(t *testing.T) {
	fin, err := os.Open(filepath.Join("testdata", "good.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	c, err := config.Load(fin, "good.yaml")
	if err != nil {
		t.Fatalf("can't load config: %v", err)
	}

	if c.Thresholds.Transcript != 0.75 || c.Thresholds.Human != 0.6 {
		t.Errorf("thresholds not loaded: %+v", c.Thresholds)
	}

	if c.Challenge.Kind != "phrase" || c.Challenge.TTLSeconds != 45 || len(c.Challenge.Pool) != 2 {
		t.Errorf("challenge not loaded: %+v", c.Challenge)
	}

	if c.Challenge.IDEntropyBits != 128 {
		t.Errorf("default id entropy lost, got %d", c.Challenge.IDEntropyBits)
	}

	if c.Audio.MinDurationMS != 1000 {
		t.Errorf("default audio gate lost, got %+v", c.Audio)
	}

	if c.Expression == nil || len(c.Expression.All) != 2 {
		t.Errorf("expression not loaded: %+v", c.Expression)
	}

	if c.ExposeScores {
		t.Error("expose_scores: false was ignored")
	}

	if c.Store.Backend != "badger" {
		t.Errorf("wanted badger store, got %q", c.Store.Backend)
	}
}

func TestLoadBad(t *testing.T) {
	for _, tt := range []struct {
		fname string
		err   error
	}{
		{fname: "bad_threshold.yaml", err: config.ErrThresholdOutOfRange},
		{fname: "bad_timeouts.yaml", err: config.ErrTimeoutOrder},
		{fname: "bad_audio.yaml", err: config.ErrAudioDurationRange},
		{fname: "bad_expression.yaml", err: config.ErrExpressionCantHaveBoth},
		{fname: "unknown_store.yaml", err: config.ErrUnknownStoreBackend},
		{fname: "bad_challenge.yaml", err: config.ErrChallengeNoKind},
		{fname: "bad_challenge.yaml", err: config.ErrChallengeTTLTooShort},
		{fname: "bad_challenge.yaml", err: config.ErrChallengeEntropyTooLow},
	} {
		t.Run(tt.fname, func(t *testing.T) {
			fin, err := os.Open(filepath.Join("testdata", tt.fname))
			if err != nil {
				t.Fatal(err)
			}
			defer fin.Close()

			if _, err := config.Load(fin, tt.fname); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
		})
	}
}

func TestThresholdsValid(t *testing.T) {
	for _, tt := range []struct {
		name string
		in   config.Thresholds
		err  error
	}{
		{name: "defaults", in: config.Thresholds{Transcript: 0.8, Human: 0.5}},
		{name: "edges", in: config.Thresholds{Transcript: 0, Human: 1}},
		{name: "negative", in: config.Thresholds{Transcript: -0.1, Human: 0.5}, err: config.ErrThresholdOutOfRange},
		{name: "too high", in: config.Thresholds{Transcript: 0.5, Human: 1.01}, err: config.ErrThresholdOutOfRange},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.in.Valid(); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
		})
	}
}
