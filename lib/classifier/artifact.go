package classifier

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"

	"github.com/TecharoHQ/vox/internal"
	"github.com/TecharoHQ/vox/lib/features"
	"github.com/vmihailenco/msgpack/v5"
)

// Params are the fitted model parameters. Exactly one of the algorithm
// specific fields is set.
type Params struct {
	Algorithm  string            `msgpack:"algorithm"`
	Logistic   *LogisticParams   `msgpack:"logistic,omitempty"`
	GaussianNB *GaussianNBParams `msgpack:"gaussianNB,omitempty"`
}

func (p *Params) predict(x []float64) (float64, error) {
	switch {
	case p.Algorithm == AlgorithmLogistic && p.Logistic != nil:
		return p.Logistic.predict(x), nil
	case p.Algorithm == AlgorithmGaussianNB && p.GaussianNB != nil:
		return p.GaussianNB.predict(x), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, p.Algorithm)
}

func (p *Params) dimension() int {
	switch {
	case p.Logistic != nil:
		return len(p.Logistic.Weights)
	case p.GaussianNB != nil:
		return len(p.GaussianNB.HumanMean)
	}
	return 0
}

// Metrics are the validation results recorded at training time.
type Metrics struct {
	Accuracy        float64 `msgpack:"accuracy" json:"accuracy"`
	Precision       float64 `msgpack:"precision" json:"precision"`
	Recall          float64 `msgpack:"recall" json:"recall"`
	F1              float64 `msgpack:"f1" json:"f1"`
	TrainCount      int     `msgpack:"trainCount" json:"trainCount"`
	ValidationCount int     `msgpack:"validationCount" json:"validationCount"`
	HumanCount      int     `msgpack:"humanCount" json:"humanCount"`
	BotCount        int     `msgpack:"botCount" json:"botCount"`
}

// Artifact is an immutable trained model. Version is the content id of its
// encoding and is not itself encoded.
type Artifact struct {
	Version  string          `msgpack:"-"`
	Params   Params          `msgpack:"params"`
	Features features.Config `msgpack:"features"`
	Mean     []float64       `msgpack:"mean"`
	Std      []float64       `msgpack:"std"`
	Train    TrainConfig     `msgpack:"train"`
	Metrics  Metrics         `msgpack:"metrics"`
}

// Encode serializes the artifact and returns its content version alongside.
func Encode(a *Artifact) ([]byte, string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(a); err != nil {
		return nil, "", fmt.Errorf("classifier: can't encode artifact: %w", err)
	}

	version, err := internal.ContentID(buf.Bytes())
	if err != nil {
		return nil, "", err
	}

	return buf.Bytes(), version, nil
}

// Decode parses an encoded artifact and stamps its version.
func Decode(data []byte) (*Artifact, error) {
	var a Artifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadArtifact, err)
	}

	if err := a.valid(); err != nil {
		return nil, err
	}

	version, err := internal.ContentID(data)
	if err != nil {
		return nil, err
	}
	a.Version = version

	return &a, nil
}

// DecodeVerified is Decode for data that must match a known version.
func DecodeVerified(version string, data []byte) (*Artifact, error) {
	if err := internal.VerifyContentID(version, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadArtifact, err)
	}

	return Decode(data)
}

func (a *Artifact) valid() error {
	if err := a.Features.Valid(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadArtifact, err)
	}

	dim := a.Features.Dimension()
	if a.Params.dimension() != dim || len(a.Mean) != dim || len(a.Std) != dim {
		return fmt.Errorf("%w: parameters don't match the %d dimensional feature configuration", ErrBadArtifact, dim)
	}

	if _, err := a.Params.predict(make([]float64, dim)); err != nil {
		return fmt.Errorf("%w: %w", ErrBadArtifact, err)
	}

	return nil
}

// Score returns the probability that v came from a human.
func (a *Artifact) Score(v features.Vector) (float64, error) {
	if len(v) != a.Features.Dimension() {
		return 0, fmt.Errorf("%w: vector has %d dimensions, model expects %d", ErrSchemaMismatch, len(v), a.Features.Dimension())
	}

	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%w: component %d", ErrNonFiniteFeature, i)
		}
	}

	return a.Params.predict(standardize(v, a.Mean, a.Std))
}

func (a *Artifact) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", a.Version),
		slog.String("algorithm", a.Params.Algorithm),
		slog.Int("dimension", a.Features.Dimension()),
		slog.Float64("accuracy", a.Metrics.Accuracy),
		slog.Float64("f1", a.Metrics.F1),
	)
}

func standardize(v, mean, std []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - mean[i]) / std[i]
	}
	return out
}
