package classifier

import "math"

// LogisticParams is an L2 regularized logistic regression over
// standardized features.
type LogisticParams struct {
	Weights []float64 `msgpack:"weights"`
	Bias    float64   `msgpack:"bias"`
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func (p *LogisticParams) predict(x []float64) float64 {
	z := p.Bias
	for i, w := range p.Weights {
		z += w * x[i]
	}
	return sigmoid(z)
}

// fitLogistic runs full batch gradient descent.
func fitLogistic(xs [][]float64, ys []float64, cfg TrainConfig) *Params {
	dim := len(xs[0])
	p := &LogisticParams{Weights: make([]float64, dim)}
	grad := make([]float64, dim)
	n := float64(len(xs))

	for range cfg.Epochs {
		clear(grad)
		var gradBias float64

		for i, x := range xs {
			diff := p.predict(x) - ys[i]
			for j := range grad {
				grad[j] += diff * x[j]
			}
			gradBias += diff
		}

		for j := range p.Weights {
			p.Weights[j] -= cfg.LearningRate * (grad[j]/n + cfg.L2*p.Weights[j])
		}
		p.Bias -= cfg.LearningRate * gradBias / n
	}

	return &Params{Algorithm: AlgorithmLogistic, Logistic: p}
}
