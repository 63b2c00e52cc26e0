// Package audio turns uploaded answers into mono float PCM at a fixed rate.
package audio

import (
	"errors"
	"time"
)

var (
	// ErrDecode is returned when a payload can't be understood as audio.
	ErrDecode = errors.New("audio: can't decode payload")

	// ErrUnsupportedFormat is returned for containers Vox doesn't read.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
)

// Clip is mono PCM with samples normalized to [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Duration is the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}

	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Peak returns the largest absolute sample value.
func (c *Clip) Peak() float64 {
	var peak float64
	for _, s := range c.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
