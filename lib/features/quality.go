package features

import (
	"fmt"
	"math"
	"time"

	"github.com/TecharoHQ/vox/lib/audio"
)

// Quality failure sub-reasons.
const (
	QualityTooShort = "too_short"
	QualityTooLong  = "too_long"
	QualitySilent   = "silent"
	QualityClipped  = "clipped"
)

// Quality bounds what an answer must look like before it is analyzed.
type Quality struct {
	MinDuration      time.Duration
	MaxDuration      time.Duration
	SilenceDBFS      float64
	ClipLevel        float64
	MaxClippingRatio float64
}

func DefaultQuality() Quality {
	return Quality{
		MinDuration:      time.Second,
		MaxDuration:      15 * time.Second,
		SilenceDBFS:      -50,
		ClipLevel:        0.999,
		MaxClippingRatio: 0.02,
	}
}

func (q Quality) Valid() error {
	if q.MinDuration <= 0 || q.MaxDuration <= q.MinDuration {
		return fmt.Errorf("%w: need 0 < min duration (%s) < max duration (%s)", ErrBadConfig, q.MinDuration, q.MaxDuration)
	}

	if q.SilenceDBFS >= 0 {
		return fmt.Errorf("%w: silence threshold must be below 0 dBFS", ErrBadConfig)
	}

	if q.ClipLevel <= 0 || q.ClipLevel > 1 || q.MaxClippingRatio < 0 || q.MaxClippingRatio >= 1 {
		return fmt.Errorf("%w: clipping bounds out of range", ErrBadConfig)
	}

	return nil
}

// QualityError explains which part of the quality gate an answer failed.
type QualityError struct {
	Reason string
	Detail string
}

func (e *QualityError) Error() string {
	return fmt.Sprintf("features: low quality audio: %s: %s", e.Reason, e.Detail)
}

func (e *QualityError) Unwrap() error {
	return ErrLowQuality
}

// Check runs the quality gate against the clip as uploaded.
func (q Quality) Check(c *audio.Clip) error {
	d := c.Duration()
	switch {
	case d < q.MinDuration:
		return &QualityError{Reason: QualityTooShort, Detail: fmt.Sprintf("%s is shorter than %s", d, q.MinDuration)}
	case d > q.MaxDuration:
		return &QualityError{Reason: QualityTooLong, Detail: fmt.Sprintf("%s is longer than %s", d, q.MaxDuration)}
	}

	var (
		sum     float64
		clipped int
	)
	for _, s := range c.Samples {
		sum += s * s
		if math.Abs(s) >= q.ClipLevel {
			clipped++
		}
	}

	level := 20 * math.Log10(math.Sqrt(sum/float64(len(c.Samples)))+1e-12)
	if level < q.SilenceDBFS {
		return &QualityError{Reason: QualitySilent, Detail: fmt.Sprintf("level %.1f dBFS is below %.1f dBFS", level, q.SilenceDBFS)}
	}

	if ratio := float64(clipped) / float64(len(c.Samples)); ratio > q.MaxClippingRatio {
		return &QualityError{Reason: QualityClipped, Detail: fmt.Sprintf("%.1f%% of samples are clipped", ratio*100)}
	}

	return nil
}
