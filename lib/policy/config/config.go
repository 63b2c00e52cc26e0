package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/TecharoHQ/vox"
	"k8s.io/apimachinery/pkg/util/yaml"
)

var (
	ErrThresholdOutOfRange = errors.New("config.Thresholds: threshold must be between 0 and 1")

	ErrChallengeNoKind          = errors.New("config.Challenge: must set kind")
	ErrChallengeTTLTooShort     = errors.New("config.Challenge: ttl_seconds must be at least 1")
	ErrChallengeTTLTooLong      = errors.New("config.Challenge: ttl_seconds must be at most 600")
	ErrChallengeEntropyTooLow   = errors.New("config.Challenge: id_entropy_bits must be at least 64")
	ErrChallengeNegativeSetting = errors.New("config.Challenge: length and retention_seconds can't be negative")

	ErrAudioDurationRange = errors.New("config.Audio: need 0 < min_duration_ms < max_duration_ms")
	ErrAudioSilence       = errors.New("config.Audio: silence_dbfs must be below 0")
	ErrAudioClipping      = errors.New("config.Audio: clipping settings must be fractions")

	ErrTimeoutNotPositive = errors.New("config.Timeouts: timeouts must be positive")
	ErrTimeoutOrder       = errors.New("config.Timeouts: recognition_ms can't exceed request_ms")

	ErrRateLimitNegative = errors.New("config.RateLimit: window_ms can't be negative")
)

// Thresholds are the two acceptance bars: T_match and T_human.
type Thresholds struct {
	Transcript float64 `json:"transcript" yaml:"transcript"`
	Human      float64 `json:"human" yaml:"human"`
}

func (t Thresholds) Valid() error {
	var errs []error

	for name, v := range map[string]float64{"transcript": t.Transcript, "human": t.Human} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%w: %s is %v", ErrThresholdOutOfRange, name, v))
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Challenge configures how prompts are issued.
type Challenge struct {
	Kind             string   `json:"kind" yaml:"kind"`
	TTLSeconds       int      `json:"ttl_seconds" yaml:"ttl_seconds"`
	RetentionSeconds int      `json:"retention_seconds,omitempty" yaml:"retention_seconds,omitempty"`
	IDEntropyBits    int      `json:"id_entropy_bits" yaml:"id_entropy_bits"`
	Length           int      `json:"length,omitempty" yaml:"length,omitempty"`
	Pool             []string `json:"pool,omitempty" yaml:"pool,omitempty"`
}

func (c Challenge) Valid() error {
	var errs []error

	if c.Kind == "" {
		errs = append(errs, ErrChallengeNoKind)
	}

	if c.TTLSeconds < 1 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrChallengeTTLTooShort, c.TTLSeconds))
	}

	if c.TTLSeconds > 600 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrChallengeTTLTooLong, c.TTLSeconds))
	}

	if c.IDEntropyBits < 64 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrChallengeEntropyTooLow, c.IDEntropyBits))
	}

	if c.Length < 0 || c.RetentionSeconds < 0 {
		errs = append(errs, ErrChallengeNegativeSetting)
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: challenge settings are not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Audio is the quality gate an answer has to pass.
type Audio struct {
	MinDurationMS    int     `json:"min_duration_ms" yaml:"min_duration_ms"`
	MaxDurationMS    int     `json:"max_duration_ms" yaml:"max_duration_ms"`
	SilenceDBFS      float64 `json:"silence_dbfs" yaml:"silence_dbfs"`
	ClipLevel        float64 `json:"clip_level" yaml:"clip_level"`
	MaxClippingRatio float64 `json:"max_clipping_ratio" yaml:"max_clipping_ratio"`
}

func (a Audio) Valid() error {
	var errs []error

	if a.MinDurationMS <= 0 || a.MaxDurationMS <= a.MinDurationMS {
		errs = append(errs, fmt.Errorf("%w, got: %d and %d", ErrAudioDurationRange, a.MinDurationMS, a.MaxDurationMS))
	}

	if a.SilenceDBFS >= 0 {
		errs = append(errs, fmt.Errorf("%w, got: %v", ErrAudioSilence, a.SilenceDBFS))
	}

	if a.ClipLevel <= 0 || a.ClipLevel > 1 || a.MaxClippingRatio < 0 || a.MaxClippingRatio >= 1 {
		errs = append(errs, ErrAudioClipping)
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: audio settings are not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Timeouts bound the work done for one answer.
type Timeouts struct {
	RecognitionMS int `json:"recognition_ms" yaml:"recognition_ms"`
	RequestMS     int `json:"request_ms" yaml:"request_ms"`
}

func (t Timeouts) Valid() error {
	if t.RecognitionMS <= 0 || t.RequestMS <= 0 {
		return ErrTimeoutNotPositive
	}

	if t.RecognitionMS > t.RequestMS {
		return fmt.Errorf("%w: %d > %d", ErrTimeoutOrder, t.RecognitionMS, t.RequestMS)
	}

	return nil
}

// RateLimit spaces out verification attempts per client address.
type RateLimit struct {
	WindowMS int `json:"window_ms" yaml:"window_ms"`
}

func (r RateLimit) Valid() error {
	if r.WindowMS < 0 {
		return ErrRateLimitNegative
	}
	return nil
}

// Config is a loaded and validated policy file.
type Config struct {
	Thresholds   Thresholds
	Expression   *ExpressionOrList
	Challenge    Challenge
	Audio        Audio
	Timeouts     Timeouts
	Store        Store
	ExposeScores bool
	RateLimit    RateLimit
}

type fileConfig struct {
	Thresholds   Thresholds        `json:"thresholds"`
	Expression   *ExpressionOrList `json:"expression,omitempty"`
	Challenge    Challenge         `json:"challenge"`
	Audio        Audio             `json:"audio"`
	Timeouts     Timeouts          `json:"timeouts"`
	Store        Store             `json:"store"`
	ExposeScores bool              `json:"expose_scores"`
	RateLimit    RateLimit         `json:"rate_limit"`
}

func (c *fileConfig) Valid() error {
	var errs []error

	if err := c.Thresholds.Valid(); err != nil {
		errs = append(errs, err)
	}

	if c.Expression != nil {
		if err := c.Expression.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("expression: %w", err))
		}
	}

	for _, v := range []interface{ Valid() error }{c.Challenge, c.Audio, c.Timeouts, &c.Store, c.RateLimit} {
		if err := v.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

func defaults() *fileConfig {
	return &fileConfig{
		Thresholds: Thresholds{
			Transcript: vox.DefaultTranscriptThreshold,
			Human:      vox.DefaultHumanThreshold,
		},
		Challenge: Challenge{
			Kind:          "digits",
			TTLSeconds:    int(vox.DefaultChallengeTTL.Seconds()),
			IDEntropyBits: 128,
		},
		Audio: Audio{
			MinDurationMS:    1000,
			MaxDurationMS:    15000,
			SilenceDBFS:      -50,
			ClipLevel:        0.999,
			MaxClippingRatio: 0.02,
		},
		Timeouts: Timeouts{
			RecognitionMS: 10000,
			RequestMS:     15000,
		},
		Store: Store{
			Backend: "memory",
		},
		ExposeScores: true,
		RateLimit: RateLimit{
			WindowMS: int(vox.DefaultRateLimitWindow.Milliseconds()),
		},
	}
}

// Default returns the configuration used when no policy file is given.
func Default() *Config {
	c := defaults()
	return c.result()
}

func (c *fileConfig) result() *Config {
	return &Config{
		Thresholds:   c.Thresholds,
		Expression:   c.Expression,
		Challenge:    c.Challenge,
		Audio:        c.Audio,
		Timeouts:     c.Timeouts,
		Store:        c.Store,
		ExposeScores: c.ExposeScores,
		RateLimit:    c.RateLimit,
	}
}

// Load reads a YAML or JSON policy file. Settings the file leaves out keep
// their defaults.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := defaults()

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(c); err != nil {
		return nil, fmt.Errorf("can't parse policy config YAML %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating policy config %s: %w", fname, err)
	}

	return c.result(), nil
}
