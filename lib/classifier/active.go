package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/TecharoHQ/vox/lib/features"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	botScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vox_bot_score",
		Help:    "Distribution of human likelihood scores",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	schemaMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vox_feature_schema_mismatches",
		Help: "Inferences refused because the feature schema drifted from the model",
	})

	modelSwaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vox_model_swaps",
		Help: "Number of times the active model artifact was replaced",
	})
)

// Active holds the artifact serving inference. Swaps are atomic and each
// request works against the snapshot it took.
type Active struct {
	p atomic.Pointer[Artifact]
}

// Swap installs a and returns the artifact it replaced.
func (a *Active) Swap(next *Artifact) *Artifact {
	prev := a.p.Swap(next)
	modelSwaps.Inc()
	slog.Info("activated model", "artifact", next)
	return prev
}

// Snapshot returns the current artifact or nil.
func (a *Active) Snapshot() *Artifact {
	return a.p.Load()
}

// Version returns the active artifact version.
func (a *Active) Version() (string, bool) {
	art := a.p.Load()
	if art == nil {
		return "", false
	}
	return art.Version, true
}

// Score runs v through art after checking that the extractor configuration
// cfg is the one art was trained against.
func Score(art *Artifact, cfg features.Config, v features.Vector) (float64, error) {
	if art == nil {
		return 0, ErrModelUnavailable
	}

	if !art.Features.Equal(cfg) {
		schemaMismatches.Inc()
		return 0, fmt.Errorf("%w: extractor config %s, model %s trained with %s", ErrSchemaMismatch, cfg.Hash(), art.Version, art.Features.Hash())
	}

	p, err := art.Score(v)
	if err != nil {
		if errors.Is(err, ErrSchemaMismatch) {
			schemaMismatches.Inc()
		}
		return 0, err
	}

	botScore.Observe(p)
	return p, nil
}
