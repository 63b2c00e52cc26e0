package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts c to rate. It returns c unchanged when the rate already
// matches.
func Resample(c *Clip, rate int) (*Clip, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("audio: invalid target rate %d", rate)
	}

	if c.SampleRate == rate || len(c.Samples) == 0 {
		return &Clip{Samples: c.Samples, SampleRate: rate}, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(c.SampleRate),
		OutputRate: float64(rate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: failed to create resampler: %w", err)
	}

	out, err := rs.Process(c.Samples)
	if err != nil {
		return nil, fmt.Errorf("audio: resampling %d -> %d: %w", c.SampleRate, rate, err)
	}

	return &Clip{Samples: out, SampleRate: rate}, nil
}

// Load decodes an answer and brings it to rate.
func Load(contentType string, data []byte, rate int) (*Clip, error) {
	c, err := Decode(contentType, data)
	if err != nil {
		return nil, err
	}

	return Resample(c, rate)
}
