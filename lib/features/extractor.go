package features

import (
	"fmt"
	"math"

	"github.com/TecharoHQ/vox/lib/audio"
)

// Vector is a fixed-length summary of one answer.
type Vector []float64

// Extractor computes feature vectors. It holds only precomputed tables and
// is safe for concurrent use.
type Extractor struct {
	cfg     Config
	quality Quality
	window  []float64
	melBank [][]float64
	dct     [][]float64
}

func New(cfg Config, quality Quality) (*Extractor, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}

	if err := quality.Valid(); err != nil {
		return nil, err
	}

	return &Extractor{
		cfg:     cfg,
		quality: quality,
		window:  hammingWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
		dct:     dctMatrix(cfg.NumCeps, cfg.NumMels),
	}, nil
}

func (e *Extractor) Config() Config { return e.cfg }

// Check runs only the quality gate.
func (e *Extractor) Check(c *audio.Clip) error {
	return e.quality.Check(c)
}

// ExtractBytes decodes an uploaded answer and extracts its features.
func (e *Extractor) ExtractBytes(contentType string, data []byte) (Vector, error) {
	clip, err := audio.Decode(contentType, data)
	if err != nil {
		return nil, err
	}

	return e.Extract(clip)
}

// Extract gates, resamples, normalizes and summarizes a clip. The same clip
// always yields the same vector.
func (e *Extractor) Extract(c *audio.Clip) (Vector, error) {
	if err := e.quality.Check(c); err != nil {
		return nil, err
	}

	clip, err := audio.Resample(c, e.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	samples := normalize(clip.Samples)
	if len(samples) < e.cfg.WindowSize {
		return nil, &QualityError{Reason: QualityTooShort, Detail: "not enough samples for one frame"}
	}

	frames := e.frames(samples)
	return e.aggregate(frames), nil
}

// normalize scales a copy of samples so the peak sits at 1.
func normalize(samples []float64) []float64 {
	var peak float64
	for _, s := range samples {
		peak = max(peak, math.Abs(s))
	}

	out := make([]float64, len(samples))
	if peak == 0 {
		return out
	}

	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}

// frames returns one row per analysis window: NumCeps cepstra followed by
// zero crossing rate, centroid, rolloff, flatness and log energy.
func (e *Extractor) frames(pcm []float64) [][]float64 {
	cfg := e.cfg
	numFrames := (len(pcm)-cfg.WindowSize)/cfg.HopSize + 1
	nfft := cfg.FFTSize
	halfFFT := nfft/2 + 1
	nyquist := float64(cfg.SampleRate) / 2
	binHz := float64(cfg.SampleRate) / float64(nfft)

	re := make([]float64, nfft)
	im := make([]float64, nfft)
	power := make([]float64, halfFFT)
	logMel := make([]float64, cfg.NumMels)

	result := make([][]float64, numFrames)
	for t := range numFrames {
		start := t * cfg.HopSize
		raw := pcm[start : start+cfg.WindowSize]
		row := make([]float64, cfg.NumCeps+perFrame)

		var (
			energy    float64
			crossings int
		)
		for i, s := range raw {
			energy += s * s
			if i > 0 && (s >= 0) != (raw[i-1] >= 0) {
				crossings++
			}

			p := s
			if i > 0 {
				p -= cfg.PreEmphasis * raw[i-1]
			}
			re[i] = p * e.window[i]
		}
		for i := cfg.WindowSize; i < nfft; i++ {
			re[i] = 0
		}
		clear(im)

		fft(re, im)

		var total, weighted, logSum float64
		for k := range halfFFT {
			power[k] = re[k]*re[k] + im[k]*im[k]
			total += power[k]
			weighted += power[k] * float64(k) * binHz
			logSum += math.Log(power[k] + 1e-12)
		}

		for m, filter := range e.melBank {
			var sum float64
			for k, w := range filter {
				sum += w * power[k]
			}
			logMel[m] = math.Log(max(sum, 1e-10))
		}

		for k, basis := range e.dct {
			var c float64
			for m, b := range basis {
				c += b * logMel[m]
			}
			row[k] = c
		}

		var centroid, rolloff, flatness float64
		if total > 1e-12 {
			centroid = weighted / total / nyquist

			threshold := cfg.Rolloff * total
			var acc float64
			for k := range halfFFT {
				acc += power[k]
				if acc >= threshold {
					rolloff = float64(k) * binHz / nyquist
					break
				}
			}

			flatness = math.Exp(logSum/float64(halfFFT)) / (total / float64(halfFFT))
		}

		row[cfg.NumCeps] = float64(crossings) / float64(cfg.WindowSize)
		row[cfg.NumCeps+1] = centroid
		row[cfg.NumCeps+2] = rolloff
		row[cfg.NumCeps+3] = flatness
		row[cfg.NumCeps+4] = math.Log(energy/float64(cfg.WindowSize) + 1e-10)

		result[t] = row
	}

	return result
}

// aggregate lays out per-frame means, then standard deviations, then the
// standard deviation of the frame-to-frame cepstral deltas.
func (e *Extractor) aggregate(frames [][]float64) Vector {
	width := e.cfg.NumCeps + perFrame
	out := make(Vector, e.cfg.Dimension())

	col := make([]float64, len(frames))
	for j := range width {
		for t, row := range frames {
			col[t] = row[j]
		}
		out[j], out[width+j] = meanStd(col)
	}

	if len(frames) > 1 {
		delta := make([]float64, len(frames)-1)
		for j := range e.cfg.NumCeps {
			for t := 1; t < len(frames); t++ {
				delta[t-1] = frames[t][j] - frames[t-1][j]
			}
			_, out[2*width+j] = meanStd(delta)
		}
	}

	return out
}

// meanStd returns the mean and population standard deviation of xs.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}

	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}

	return mean, math.Sqrt(sq / float64(len(xs)))
}

// CheckDimension reports a vector built for another configuration.
func (c Config) CheckDimension(v Vector) error {
	if len(v) != c.Dimension() {
		return fmt.Errorf("features: vector has %d dimensions, configuration produces %d", len(v), c.Dimension())
	}
	return nil
}
