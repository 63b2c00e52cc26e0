// Package policy turns a policy file into the settings that drive one
// verification and fuses the transcript and classifier scores into a
// verdict.
package policy

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/TecharoHQ/vox/lib/challenge"
	_ "github.com/TecharoHQ/vox/lib/challenge/digits"
	_ "github.com/TecharoHQ/vox/lib/challenge/phrasepool"
	"github.com/TecharoHQ/vox/lib/features"
	"github.com/TecharoHQ/vox/lib/policy/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vox_verdicts",
		Help: "Verdicts by primary reason",
	}, []string{"reason"})

	VerdictReasons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vox_verdict_reasons",
		Help: "Every reason cited by a verdict, so combined failures are visible",
	}, []string{"reason"})
)

// ParsedConfig is a policy file resolved into runtime settings.
type ParsedConfig struct {
	orig *config.Config

	Fusion             *Fusion
	Challenge          challenge.Config
	Quality            features.Quality
	RecognitionTimeout time.Duration
	RequestTimeout     time.Duration
	Store              config.Store
	ExposeScores       bool
	RateLimitWindow    time.Duration
}

// NewParsedConfig resolves an already loaded config.
func NewParsedConfig(c *config.Config) (*ParsedConfig, error) {
	var errs []error

	fusion, err := NewFusion(c.Thresholds, c.Expression)
	if err != nil {
		errs = append(errs, err)
	}

	result := &ParsedConfig{
		orig:   c,
		Fusion: fusion,
		Challenge: challenge.Config{
			Kind:          c.Challenge.Kind,
			TTL:           time.Duration(c.Challenge.TTLSeconds) * time.Second,
			Retention:     time.Duration(c.Challenge.RetentionSeconds) * time.Second,
			IDEntropyBits: c.Challenge.IDEntropyBits,
			Options: challenge.Options{
				Pool:   c.Challenge.Pool,
				Length: c.Challenge.Length,
			},
		},
		Quality: features.Quality{
			MinDuration:      time.Duration(c.Audio.MinDurationMS) * time.Millisecond,
			MaxDuration:      time.Duration(c.Audio.MaxDurationMS) * time.Millisecond,
			SilenceDBFS:      c.Audio.SilenceDBFS,
			ClipLevel:        c.Audio.ClipLevel,
			MaxClippingRatio: c.Audio.MaxClippingRatio,
		},
		RecognitionTimeout: time.Duration(c.Timeouts.RecognitionMS) * time.Millisecond,
		RequestTimeout:     time.Duration(c.Timeouts.RequestMS) * time.Millisecond,
		Store:              c.Store,
		ExposeScores:       c.ExposeScores,
		RateLimitWindow:    time.Duration(c.RateLimit.WindowMS) * time.Millisecond,
	}

	if err := result.Challenge.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := result.Quality.Valid(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("errors validating policy: %w", errors.Join(errs...))
	}

	return result, nil
}

// ParseConfig loads and resolves a policy file.
func ParseConfig(fin io.Reader, fname string) (*ParsedConfig, error) {
	c, err := config.Load(fin, fname)
	if err != nil {
		return nil, err
	}

	return NewParsedConfig(c)
}

// Default resolves the built-in defaults.
func Default() *ParsedConfig {
	result, err := NewParsedConfig(config.Default())
	if err != nil {
		panic(fmt.Sprintf("default policy is invalid: %v", err))
	}
	return result
}

// Config returns the file contents this policy was built from.
func (pc *ParsedConfig) Config() *config.Config { return pc.orig }

// Record counts v in the verdict metrics.
func Record(v Verdict) {
	Verdicts.WithLabelValues(string(v.Reason)).Inc()
	for _, r := range v.Reasons {
		VerdictReasons.WithLabelValues(string(r)).Inc()
	}
}
