// Package features turns decoded answers into fixed-length acoustic feature
// vectors for the bot classifier.
//
// Default parameters follow the common speech front-end convention:
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     26
//	NumCeps:     13
//	LowFreq:     20
//	HighFreq:  7600
//	PreEmphasis: 0.97
//	Rolloff:     0.85
package features

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/vox/internal"
)

// ConfigVersion is bumped whenever the meaning of a Config field or the
// vector layout changes.
const ConfigVersion = 1

// perFrame is the count of non-cepstral per-frame features: zero crossing
// rate, spectral centroid, rolloff, flatness and log energy.
const perFrame = 5

var (
	ErrBadConfig  = errors.New("features: configuration is invalid")
	ErrLowQuality = errors.New("features: audio failed the quality gate")
)

// Config controls feature extraction. Artifacts embed the Config they were
// trained with and inference refuses to run against any other.
type Config struct {
	Version     int     `json:"version" msgpack:"version"`
	SampleRate  int     `json:"sampleRate" msgpack:"sampleRate"`
	WindowSize  int     `json:"windowSize" msgpack:"windowSize"`
	HopSize     int     `json:"hopSize" msgpack:"hopSize"`
	FFTSize     int     `json:"fftSize" msgpack:"fftSize"`
	NumMels     int     `json:"numMels" msgpack:"numMels"`
	NumCeps     int     `json:"numCeps" msgpack:"numCeps"`
	LowFreq     float64 `json:"lowFreq" msgpack:"lowFreq"`
	HighFreq    float64 `json:"highFreq" msgpack:"highFreq"`
	PreEmphasis float64 `json:"preEmphasis" msgpack:"preEmphasis"`
	Rolloff     float64 `json:"rolloff" msgpack:"rolloff"`
}

// DefaultConfig returns the extraction parameters Vox ships with.
func DefaultConfig() Config {
	return Config{
		Version:     ConfigVersion,
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     26,
		NumCeps:     13,
		LowFreq:     20,
		HighFreq:    7600,
		PreEmphasis: 0.97,
		Rolloff:     0.85,
	}
}

func (c Config) Valid() error {
	var errs []error

	if c.Version != ConfigVersion {
		errs = append(errs, fmt.Errorf("%w: version %d is not supported, wanted %d", ErrBadConfig, c.Version, ConfigVersion))
	}

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: sample rate must be positive", ErrBadConfig))
	}

	if c.WindowSize <= 0 || c.HopSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: window and hop sizes must be positive", ErrBadConfig))
	}

	if c.FFTSize < c.WindowSize || c.FFTSize&(c.FFTSize-1) != 0 {
		errs = append(errs, fmt.Errorf("%w: fft size %d must be a power of two no smaller than the window", ErrBadConfig, c.FFTSize))
	}

	if c.NumMels <= 0 || c.NumCeps <= 0 || c.NumCeps > c.NumMels {
		errs = append(errs, fmt.Errorf("%w: need 0 < numCeps (%d) <= numMels (%d)", ErrBadConfig, c.NumCeps, c.NumMels))
	}

	if c.LowFreq < 0 || c.HighFreq <= c.LowFreq || c.HighFreq > float64(c.SampleRate)/2 {
		errs = append(errs, fmt.Errorf("%w: mel range [%g, %g] must sit inside [0, nyquist]", ErrBadConfig, c.LowFreq, c.HighFreq))
	}

	if c.PreEmphasis < 0 || c.PreEmphasis >= 1 {
		errs = append(errs, fmt.Errorf("%w: pre-emphasis must be in [0, 1)", ErrBadConfig))
	}

	if c.Rolloff <= 0 || c.Rolloff >= 1 {
		errs = append(errs, fmt.Errorf("%w: rolloff must be in (0, 1)", ErrBadConfig))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Dimension is the length of every vector produced with this Config.
func (c Config) Dimension() int {
	return 2*(c.NumCeps+perFrame) + c.NumCeps
}

// Equal reports whether two configs produce interchangeable vectors.
func (c Config) Equal(other Config) bool {
	return c == other
}

// Hash fingerprints the config for cache keys.
func (c Config) Hash() string {
	data, _ := json.Marshal(c)
	return internal.FastHash(string(data))
}
