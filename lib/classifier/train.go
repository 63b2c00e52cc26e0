package classifier

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/TecharoHQ/vox/lib/features"
)

type trainer func(xs [][]float64, ys []float64, cfg TrainConfig) *Params

var algorithms = map[string]trainer{
	AlgorithmLogistic:   fitLogistic,
	AlgorithmGaussianNB: fitGaussianNB,
}

// Fit trains an artifact on ds. Every vector must have been produced with
// fcfg. Fit is deterministic for a given dataset, config and seed.
func Fit(ds *Dataset, cfg TrainConfig, fcfg features.Config) (*Artifact, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}

	if err := fcfg.Valid(); err != nil {
		return nil, err
	}

	human, bot := ds.Counts()
	if human < cfg.MinExamples || bot < cfg.MinExamples {
		return nil, fmt.Errorf("%w: have %d human and %d bot examples, need at least %d of each", ErrInsufficientData, human, bot, cfg.MinExamples)
	}

	if ds.Dimension() != fcfg.Dimension() {
		return nil, fmt.Errorf("%w: dataset has %d dimensions, feature configuration produces %d", ErrSchemaMismatch, ds.Dimension(), fcfg.Dimension())
	}

	train, validation := split(ds.Examples(), cfg)
	if len(train) == 0 {
		return nil, fmt.Errorf("%w: validation split %.2f leaves nothing to train on", ErrInsufficientData, cfg.ValidationSplit)
	}
	mean, std := columnStats(train)

	xs := make([][]float64, len(train))
	ys := make([]float64, len(train))
	for i, ex := range train {
		xs[i] = standardize(ex.Vector, mean, std)
		ys[i] = ex.Label.target()
	}

	a := &Artifact{
		Params:   *algorithms[cfg.Algorithm](xs, ys, cfg),
		Features: fcfg,
		Mean:     mean,
		Std:      std,
		Train:    cfg,
	}

	evalSet := validation
	if len(evalSet) == 0 {
		evalSet = train
	}

	metrics, err := evaluate(a, evalSet)
	if err != nil {
		return nil, err
	}
	metrics.TrainCount = len(train)
	metrics.ValidationCount = len(validation)
	metrics.HumanCount = human
	metrics.BotCount = bot
	a.Metrics = metrics

	_, version, err := Encode(a)
	if err != nil {
		return nil, err
	}
	a.Version = version

	slog.Info("trained classifier", "artifact", a, "dataset", ds)
	return a, nil
}

// split shuffles each class with the configured seed and moves the
// validation share of each into the validation set, never all of it.
func split(examples []Example, cfg TrainConfig) (train, validation []Example) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	var byClass [2][]Example
	for _, ex := range examples {
		byClass[ex.Label] = append(byClass[ex.Label], ex)
	}

	for _, class := range byClass {
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })

		n := int(math.Round(float64(len(class)) * cfg.ValidationSplit))
		if cfg.ValidationSplit > 0 && n == 0 && len(class) > 1 {
			n = 1
		}
		// Every class keeps at least one training example.
		n = min(n, max(len(class)-1, 0))

		validation = append(validation, class[:n]...)
		train = append(train, class[n:]...)
	}

	return train, validation
}

func columnStats(examples []Example) (mean, std []float64) {
	dim := len(examples[0].Vector)
	mean = make([]float64, dim)
	std = make([]float64, dim)
	n := float64(len(examples))

	for _, ex := range examples {
		for j, v := range ex.Vector {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}

	for _, ex := range examples {
		for j, v := range ex.Vector {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		// Constant features would divide by zero.
		if std[j] < 1e-12 {
			std[j] = 1
		}
	}

	return mean, std
}

func evaluate(a *Artifact, examples []Example) (Metrics, error) {
	var tp, fp, tn, fn float64

	for _, ex := range examples {
		p, err := a.Score(ex.Vector)
		if err != nil {
			return Metrics{}, err
		}

		predicted := p >= 0.5
		switch {
		case predicted && ex.Label == Human:
			tp++
		case predicted && ex.Label == Bot:
			fp++
		case !predicted && ex.Label == Bot:
			tn++
		default:
			fn++
		}
	}

	var m Metrics
	if total := tp + fp + tn + fn; total > 0 {
		m.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}

	return m, nil
}
